package formatter

import (
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

var whatsAppGreeting = model.Localized{
	model.LocaleEN: "Hello, I have a question",
	model.LocaleAR: "مرحباً، لدي استفسار",
}

var suggestions = map[model.IntentType]map[model.Locale][]string{
	model.IntentGreeting: {
		model.LocaleEN: {"Show me the products", "What are the prices?", "How can I contact you?"},
		model.LocaleAR: {"اعرض لي المنتجات", "ما هي الأسعار؟", "كيف أتواصل معكم؟"},
	},
	model.IntentSearch: {
		model.LocaleEN: {"Show me more options", "What's the cheapest?", "Take me to it"},
		model.LocaleAR: {"اعرض المزيد", "ما هو الأرخص؟", "خذني إليه"},
	},
	model.IntentPrice: {
		model.LocaleEN: {"Any discounts?", "Compare prices", "Is it in stock?"},
		model.LocaleAR: {"هل يوجد خصم؟", "قارن الأسعار", "هل هو متوفر؟"},
	},
	model.IntentDetail: {
		model.LocaleEN: {"Show me where it is", "Compare with similar", "I want to buy this"},
		model.LocaleAR: {"أرني مكانه", "قارن مع مشابه", "أريد شراءه"},
	},
	model.IntentNavigate: {
		model.LocaleEN: {"Tell me more about it", "What's the price?", "Show me something else"},
		model.LocaleAR: {"أخبرني المزيد عنه", "كم سعره؟", "أرني شيئاً آخر"},
	},
	model.IntentCompare: {
		model.LocaleEN: {"Which one do you recommend?", "Show me both", "What's the difference?"},
		model.LocaleAR: {"أيهما تنصح؟", "أرني الاثنين", "ما الفرق بينهما؟"},
	},
	model.IntentContact: {
		model.LocaleEN: {"Send a WhatsApp message", "Request a callback", "Show me the products"},
		model.LocaleAR: {"أرسل رسالة واتساب", "اطلب اتصالاً", "اعرض لي المنتجات"},
	},
	model.IntentLeadCapture: {
		model.LocaleEN: {"Book a visit", "Request a quote", "Contact me later"},
		model.LocaleAR: {"احجز زيارة", "اطلب عرض سعر", "تواصلوا معي لاحقاً"},
	},
	model.IntentHelp: {
		model.LocaleEN: {"Show me the products", "Take me on a tour", "How can I contact you?"},
		model.LocaleAR: {"اعرض لي المنتجات", "خذني في جولة", "كيف أتواصل معكم؟"},
	},
	model.IntentOutOfScope: {
		model.LocaleEN: {"Show me the products", "What can you help with?", "Contact the team"},
		model.LocaleAR: {"اعرض لي المنتجات", "بماذا يمكنك المساعدة؟", "تواصل مع الفريق"},
	},
	model.IntentUnknown: {
		model.LocaleEN: {"Show me the products", "What are the prices?", "Help"},
		model.LocaleAR: {"اعرض لي المنتجات", "ما هي الأسعار؟", "مساعدة"},
	},
}

func init() {
	suggestions[model.IntentAvailability] = suggestions[model.IntentSearch]
	suggestions[model.IntentFarewell] = suggestions[model.IntentGreeting]
	suggestions[model.IntentConfirmation] = suggestions[model.IntentUnknown]
}

// Suggestions returns the fixed follow-ups for intent in locale. The
// returned slice is a copy.
func Suggestions(intent model.IntentType, loc model.Locale) []string {
	set, ok := suggestions[intent]
	if !ok {
		set = suggestions[model.IntentUnknown]
	}
	list, ok := set[loc]
	if !ok {
		list = set[model.LocaleEN]
	}
	return append([]string(nil), list...)
}

var safeReply = model.Localized{
	model.LocaleEN: "Sorry, I didn't quite get that. Could you rephrase your question?",
	model.LocaleAR: "عذراً، لم أفهم ذلك جيداً. هل يمكنك إعادة صياغة سؤالك؟",
}

var systemErrorReply = model.Localized{
	model.LocaleEN: "Sorry, something went wrong on our side. Please try again in a moment.",
	model.LocaleAR: "عذراً، حدث خطأ من جهتنا. يرجى المحاولة مرة أخرى بعد قليل.",
}

var rateLimitReplies = map[model.RateLimitScope]model.Localized{
	model.ScopeIP: {
		model.LocaleEN: "You're sending messages too quickly. Please wait a moment and try again.",
		model.LocaleAR: "أنت ترسل الرسائل بسرعة كبيرة. يرجى الانتظار قليلاً ثم المحاولة مرة أخرى.",
	},
	model.ScopeSession: {
		model.LocaleEN: "This conversation has reached its message limit. Please try again later.",
		model.LocaleAR: "وصلت هذه المحادثة إلى الحد الأقصى للرسائل. يرجى المحاولة لاحقاً.",
	},
	model.ScopeDemo: {
		model.LocaleEN: "The assistant has reached its daily limit. Please contact the team directly.",
		model.LocaleAR: "وصل المساعد إلى حده اليومي. يرجى التواصل مع الفريق مباشرة.",
	},
	model.ScopeGlobal: {
		model.LocaleEN: "The service is very busy right now. Please try again later.",
		model.LocaleAR: "الخدمة مشغولة جداً الآن. يرجى المحاولة لاحقاً.",
	},
}

// Safe is the generic reply used when a response fails validation.
func (f *Formatter) Safe(in FormatInput) *model.AgentResponse {
	resp := f.base(in)
	resp.Text = safeReply.Get(in.Locale)
	resp.Suggestions = Suggestions(model.IntentUnknown, in.Locale)
	return resp
}

// SystemError is returned to the caller for infrastructure faults.
func (f *Formatter) SystemError(loc model.Locale, sessionID string) *model.AgentResponse {
	resp := f.base(FormatInput{Locale: loc, SessionID: sessionID})
	resp.Text = systemErrorReply.Get(loc)
	resp.Suggestions = Suggestions(model.IntentUnknown, loc)
	return resp
}

// RateLimited explains a limiter denial and carries the retry hint.
func (f *Formatter) RateLimited(rl model.RateLimitResult, loc model.Locale, sessionID string) *model.AgentResponse {
	resp := f.base(FormatInput{Locale: loc, SessionID: sessionID})
	text, ok := rateLimitReplies[rl.Scope]
	if !ok {
		text = rateLimitReplies[model.ScopeGlobal]
	}
	resp.Text = text.Get(loc)
	resp.Suggestions = []string{}
	resp.RateLimit = &model.RateLimitInfo{
		Scope:             rl.Scope,
		RetryAfterSeconds: rl.RetryAfterSeconds,
		ResetAt:           rl.ResetAt.UTC().Truncate(time.Second),
	}
	return resp
}
