package router

import (
	"context"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// LocalProvider answers from canned per-intent replies. It is the terminal
// link of every chain and never fails.
type LocalProvider struct{}

func (LocalProvider) Name() string { return "local" }

var cannedReplies = map[model.IntentType]model.Localized{
	model.IntentGreeting: {
		model.LocaleEN: "Hello! I'm {agent}, your tour assistant. How can I help you today?",
		model.LocaleAR: "مرحباً! أنا {agent}، مساعدك في الجولة. كيف يمكنني مساعدتك اليوم؟",
	},
	model.IntentFarewell: {
		model.LocaleEN: "Thank you for visiting! I'm always here if you need anything. Goodbye!",
		model.LocaleAR: "شكراً لزيارتك! أنا هنا دائماً إذا احتجت أي شيء. مع السلامة!",
	},
	model.IntentConfirmation: {
		model.LocaleEN: "Great! How else can I help you?",
		model.LocaleAR: "تمام! كيف يمكنني مساعدتك أكثر؟",
	},
	model.IntentHelp: {
		model.LocaleEN: "I can help you with:\n• Finding items\n• Prices and availability\n• Moving around the tour\n• Comparing items\n• Contact details\n\nWhat would you like to know?",
		model.LocaleAR: "يمكنني مساعدتك في:\n• البحث عن المنتجات\n• الأسعار والتوفر\n• التنقل في الجولة\n• مقارنة المنتجات\n• معلومات التواصل\n\nما الذي تود معرفته؟",
	},
	model.IntentOutOfScope: {
		model.LocaleEN: "Sorry, I can only help with this tour and its products and services. Is there something here I can help you with?",
		model.LocaleAR: "عذراً، أستطيع المساعدة فقط فيما يخص هذه الجولة ومنتجاتها وخدماتها. هل هناك شيء هنا يمكنني مساعدتك به؟",
	},
	model.IntentSearch: {
		model.LocaleEN: "I'd love to help you browse. What kind of item are you looking for?",
		model.LocaleAR: "يسعدني مساعدتك في التصفح. ما نوع المنتج الذي تبحث عنه؟",
	},
	model.IntentPrice: {
		model.LocaleEN: "Which item would you like the price of?",
		model.LocaleAR: "ما المنتج الذي تريد معرفة سعره؟",
	},
	model.IntentNavigate: {
		model.LocaleEN: "Tell me which item you'd like to see and I'll take you there.",
		model.LocaleAR: "أخبرني بالمنتج الذي تريد رؤيته وسأنقلك إليه.",
	},
	model.IntentCompare: {
		model.LocaleEN: "Which two items would you like to compare?",
		model.LocaleAR: "ما المنتجان اللذان تريد المقارنة بينهما؟",
	},
	model.IntentContact: {
		model.LocaleEN: "You can reach our team directly and we'll be happy to help.",
		model.LocaleAR: "يمكنك التواصل مع فريقنا مباشرة وسيسعدنا مساعدتك.",
	},
	model.IntentLeadCapture: {
		model.LocaleEN: "We'd love to help! Leave your details and our team will get back to you. [[LEAD:inquiry]]",
		model.LocaleAR: "يسعدنا خدمتك! اترك بياناتك وسيتواصل معك فريقنا. [[LEAD:inquiry]]",
	},
	model.IntentUnknown: {
		model.LocaleEN: "I'm here to help! I can find items, share prices or connect you with our team. What would you like?",
		model.LocaleAR: "أنا هنا لمساعدتك! يمكنني البحث عن المنتجات أو تقديم الأسعار أو ربطك بفريقنا. ما الذي تريده؟",
	},
}

func init() {
	cannedReplies[model.IntentAvailability] = cannedReplies[model.IntentSearch]
	cannedReplies[model.IntentDetail] = cannedReplies[model.IntentPrice]
}

// Reply returns the canned text for intent in locale.
func (LocalProvider) Reply(req *model.ModelRequest) string {
	if req.Intent == model.IntentGreeting && req.Greeting != "" {
		return req.Greeting
	}
	tpl, ok := cannedReplies[req.Intent]
	if !ok {
		tpl = cannedReplies[model.IntentUnknown]
	}
	agent := req.AgentName
	if agent == "" {
		agent = model.Localized{model.LocaleEN: "your assistant", model.LocaleAR: "مساعدك"}.Get(req.Locale)
	}
	return strings.ReplaceAll(tpl.Get(req.Locale), "{agent}", agent)
}

func (l LocalProvider) Call(_ context.Context, req *model.ModelRequest) (string, error) {
	return l.Reply(req), nil
}
