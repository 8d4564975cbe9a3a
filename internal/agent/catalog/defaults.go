package catalog

import (
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

const defaultDailyMessageLimit = 200

type persona struct {
	agentName model.Localized
	persona   model.Localized
	greeting  model.Localized
}

var personas = map[model.BusinessType]persona{
	model.BusinessEcommerce: {
		agentName: model.Localized{model.LocaleEN: "Retail Assistant", model.LocaleAR: "مساعد المبيعات"},
		persona: model.Localized{
			model.LocaleEN: "A helpful retail sales assistant who knows the product catalog well",
			model.LocaleAR: "مساعد مبيعات مفيد يعرف كتالوج المنتجات جيداً",
		},
		greeting: model.Localized{
			model.LocaleEN: "Hello! How can I help you find what you need today?",
			model.LocaleAR: "مرحباً! كيف يمكنني مساعدتك في إيجاد ما تحتاجه اليوم؟",
		},
	},
	model.BusinessFurniture: {
		agentName: model.Localized{model.LocaleEN: "Showroom Guide", model.LocaleAR: "مرشد المعرض"},
		persona: model.Localized{
			model.LocaleEN: "A friendly showroom guide who helps visitors find furniture that fits their space and budget",
			model.LocaleAR: "مرشد معرض ودود يساعد الزوار في إيجاد الأثاث المناسب لمساحتهم وميزانيتهم",
		},
		greeting: model.Localized{
			model.LocaleEN: "Welcome to the showroom! Looking for something specific?",
			model.LocaleAR: "أهلاً بك في المعرض! هل تبحث عن شيء محدد؟",
		},
	},
	model.BusinessCafe: {
		agentName: model.Localized{model.LocaleEN: "Cafe Host", model.LocaleAR: "مضيف المقهى"},
		persona: model.Localized{
			model.LocaleEN: "A warm cafe host who knows every item on the menu",
			model.LocaleAR: "مضيف مقهى ودود يعرف كل صنف في القائمة",
		},
		greeting: model.Localized{
			model.LocaleEN: "Hi there! Can I help you pick something from the menu?",
			model.LocaleAR: "أهلاً! هل يمكنني مساعدتك في اختيار شيء من القائمة؟",
		},
	},
	model.BusinessHotel: {
		agentName: model.Localized{model.LocaleEN: "Concierge", model.LocaleAR: "الكونسيرج"},
		persona: model.Localized{
			model.LocaleEN: "A courteous hotel concierge who helps guests choose rooms and book stays",
			model.LocaleAR: "كونسيرج فندقي لبق يساعد الضيوف في اختيار الغرف والحجز",
		},
		greeting: model.Localized{
			model.LocaleEN: "Welcome! Would you like to explore our rooms?",
			model.LocaleAR: "أهلاً بك! هل تود استكشاف غرفنا؟",
		},
	},
	model.BusinessRealEstate: {
		agentName: model.Localized{model.LocaleEN: "Property Consultant", model.LocaleAR: "مستشار عقاري"},
		persona: model.Localized{
			model.LocaleEN: "A knowledgeable property consultant who helps find the perfect space",
			model.LocaleAR: "مستشار عقاري ذو خبرة يساعد في إيجاد المكان المثالي",
		},
		greeting: model.Localized{
			model.LocaleEN: "Hello! Let me help you find your ideal property.",
			model.LocaleAR: "مرحباً! دعني أساعدك في إيجاد العقار المثالي.",
		},
	},
}

func personaFor(t model.BusinessType) persona {
	switch t {
	case model.BusinessShowroom:
		t = model.BusinessEcommerce
	case model.BusinessRestaurant:
		t = model.BusinessCafe
	}
	if p, ok := personas[t]; ok {
		return p
	}
	return personas[model.BusinessEcommerce]
}

// ApplyDefaults fills every unset persona field of d from the defaults of its business type.
func ApplyDefaults(d *model.DemoConfig) {
	p := personaFor(d.Type)
	fill := func(dst *model.Localized, src model.Localized) {
		if *dst == nil {
			*dst = model.Localized{}
		}
		for l, v := range src {
			if (*dst)[l] == "" {
				(*dst)[l] = v
			}
		}
	}
	fill(&d.AgentName, p.agentName)
	fill(&d.Persona, p.persona)
	fill(&d.Greeting, p.greeting)
	if d.Name == nil {
		d.Name = model.Localized{}
	}
	if d.Name.Get(model.LocaleEN) == "" {
		d.Name[model.LocaleEN] = d.Slug
	}
	if d.DailyMessageLimit <= 0 {
		d.DailyMessageLimit = defaultDailyMessageLimit
	}
	if d.Currency == "" {
		d.Currency = "EGP"
	}
}

// FallbackCatalog is served for demos the backend does not know.
func FallbackCatalog(slug string) *model.Catalog {
	demo := model.DemoConfig{
		Slug: slug,
		Type: model.BusinessEcommerce,
		Name: model.Localized{model.LocaleEN: "Virtual Tour", model.LocaleAR: "جولة افتراضية"},
	}
	ApplyDefaults(&demo)
	return &model.Catalog{
		Demo:     demo,
		Items:    []model.TourItem{},
		LoadedAt: time.Now(),
		Fallback: true,
	}
}
