package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// maxBodyBytes bounds a single content API response.
const maxBodyBytes = 8 << 20

// StrapiSource loads demos from the Strapi v5 content API. English is the
// primary locale; Arabic fields are merged in by documentId.
type StrapiSource struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewStrapiSource(baseURL, token string, timeout time.Duration) *StrapiSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StrapiSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// collectionFor maps a business type onto the Strapi collection holding its items.
func collectionFor(t model.BusinessType) string {
	switch t {
	case model.BusinessCafe, model.BusinessRestaurant:
		return "demo-menu-items"
	case model.BusinessHotel:
		return "demo-rooms"
	case model.BusinessRealEstate:
		return "demo-properties"
	default:
		return "demo-products"
	}
}

// flexFloat accepts numbers and numeric strings ("1,250.00").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

type strapiList[T any] struct {
	Data []T `json:"data"`
}

type strapiDemo struct {
	ID               int    `json:"id"`
	DocumentID       string `json:"documentId"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	BusinessName     string `json:"businessName"`
	DemoType         string `json:"demoType"`
	BusinessPhone    string `json:"businessPhone"`
	BusinessEmail    string `json:"businessEmail"`
	BusinessWhatsapp string `json:"businessWhatsapp"`
	BusinessAddress  string `json:"businessAddress"`
	BusinessHours    string `json:"businessHours"`
	Currency         string `json:"currency"`
}

type strapiAnchor struct {
	SweepID  string          `json:"sweepId"`
	Position *model.Position `json:"position"`
}

type strapiItem struct {
	ID             int             `json:"id"`
	DocumentID     string          `json:"documentId"`
	Name           string          `json:"name"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          flexFloat       `json:"price"`
	Currency       string          `json:"currency"`
	InStock        *bool           `json:"inStock"`
	IsAvailable    *bool           `json:"isAvailable"`
	Color          string          `json:"color"`
	Material       string          `json:"material"`
	Specifications map[string]any  `json:"specifications"`
	Tags           []string        `json:"tags"`
	SweepID        string          `json:"sweepId"`
	Position       *model.Position `json:"position"`
	Hotspot        *strapiAnchor   `json:"hotspot"`
}

type strapiAgentConfig struct {
	AgentName         string   `json:"agentName"`
	Persona           string   `json:"persona"`
	Greeting          string   `json:"greeting"`
	DailyMsgLimit     int      `json:"dailyMsgLimit"`
	EnableLeadCapture *bool    `json:"enableLeadCapture"`
	EnableNavigation  *bool    `json:"enableNavigation"`
	EnabledTools      []string `json:"enabledTools"`
}

type strapiKnowledge struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

func (s *StrapiSource) Load(ctx context.Context, slug string) (*model.Catalog, error) {
	slugQ := url.QueryEscape(slug)

	var enDemos strapiList[strapiDemo]
	if err := s.get(ctx, "/api/demos?filters[slug][$eq]="+slugQ+"&locale=en&populate=*", &enDemos); err != nil {
		return nil, err
	}
	if len(enDemos.Data) == 0 {
		return nil, ErrDemoNotFound
	}
	en := enDemos.Data[0]

	var arDemo *strapiDemo
	var arDemos strapiList[strapiDemo]
	if err := s.get(ctx, "/api/demos?filters[slug][$eq]="+slugQ+"&locale=ar&populate=*", &arDemos); err != nil {
		logx.Warn().Err(err).Str("demo_id", slug).Msg("arabic demo metadata unavailable")
	} else if len(arDemos.Data) > 0 {
		arDemo = &arDemos.Data[0]
	}

	demo := mapDemo(en, arDemo)

	collection := collectionFor(demo.Type)
	itemsPath := "/api/" + collection + "?filters[demo][slug][$eq]=" + slugQ + "&populate=*&pagination[pageSize]=100&locale="
	var enItems strapiList[strapiItem]
	if err := s.get(ctx, itemsPath+"en", &enItems); err != nil {
		return nil, err
	}
	var arItems strapiList[strapiItem]
	if err := s.get(ctx, itemsPath+"ar", &arItems); err != nil {
		logx.Warn().Err(err).Str("demo_id", slug).Str("collection", collection).Msg("arabic items unavailable")
	}

	s.applyAgentConfig(ctx, slugQ, &demo)
	ApplyDefaults(&demo)

	return &model.Catalog{
		Demo:      demo,
		Items:     mergeItems(enItems.Data, arItems.Data, demo.Currency),
		Knowledge: s.loadKnowledge(ctx, slugQ),
		LoadedAt:  time.Now(),
	}, nil
}

func (s *StrapiSource) applyAgentConfig(ctx context.Context, slugQ string, demo *model.DemoConfig) {
	path := "/api/ai-agent-configs?filters[demo][slug][$eq]=" + slugQ + "&populate=demo&locale="
	for _, loc := range []model.Locale{model.LocaleEN, model.LocaleAR} {
		var cfgs strapiList[strapiAgentConfig]
		if err := s.get(ctx, path+string(loc), &cfgs); err != nil || len(cfgs.Data) == 0 {
			continue
		}
		c := cfgs.Data[0]
		setLocalized(&demo.AgentName, loc, c.AgentName)
		setLocalized(&demo.Persona, loc, c.Persona)
		setLocalized(&demo.Greeting, loc, c.Greeting)
		if loc != model.LocaleEN {
			continue
		}
		if c.DailyMsgLimit > 0 {
			demo.DailyMessageLimit = c.DailyMsgLimit
		}
		for _, t := range c.EnabledTools {
			demo.EnabledTools = append(demo.EnabledTools, model.ToolName(t))
		}
		if len(demo.EnabledTools) == 0 && (isFalse(c.EnableLeadCapture) || isFalse(c.EnableNavigation)) {
			demo.EnabledTools = []model.ToolName{
				model.ToolSearchItems, model.ToolGetItemDetails, model.ToolCompareItems, model.ToolGetContactInfo,
			}
			if !isFalse(c.EnableNavigation) {
				demo.EnabledTools = append(demo.EnabledTools, model.ToolNavigateToItem)
			}
			if !isFalse(c.EnableLeadCapture) {
				demo.EnabledTools = append(demo.EnabledTools, model.ToolCaptureLead)
			}
		}
	}
}

func (s *StrapiSource) loadKnowledge(ctx context.Context, slugQ string) []model.KnowledgeEntry {
	path := "/api/ai-knowledge-entries?filters[demo][slug][$eq]=" + slugQ +
		"&filters[isActive][$eq]=true&populate=demo&sort=priority:desc&pagination[limit]=30&locale="
	var en, ar strapiList[strapiKnowledge]
	if err := s.get(ctx, path+"en", &en); err != nil {
		logx.Warn().Err(err).Msg("knowledge entries unavailable")
		return nil
	}
	_ = s.get(ctx, path+"ar", &ar)

	out := make([]model.KnowledgeEntry, 0, len(en.Data))
	for i, k := range en.Data {
		e := model.KnowledgeEntry{
			Question: model.Localized{model.LocaleEN: k.Question},
			Answer:   model.Localized{model.LocaleEN: k.Answer},
			Category: k.Category,
		}
		// entries are sorted identically in both locales
		if i < len(ar.Data) {
			e.Question[model.LocaleAR] = ar.Data[i].Question
			e.Answer[model.LocaleAR] = ar.Data[i].Answer
		}
		out = append(out, e)
	}
	return out
}

func (s *StrapiSource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("strapi %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("strapi %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("strapi %s: read body: %w", req.URL.Path, err)
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("strapi %s: decode: %w", req.URL.Path, err)
	}
	return nil
}

func mapDemo(en strapiDemo, ar *strapiDemo) model.DemoConfig {
	d := model.DemoConfig{
		Slug: en.Slug,
		Type: model.ParseBusinessType(en.DemoType),
		Name: model.Localized{model.LocaleEN: firstNonEmpty(en.BusinessName, en.Title)},
		Contact: model.Contact{
			Phone:    en.BusinessPhone,
			WhatsApp: en.BusinessWhatsapp,
			Email:    en.BusinessEmail,
			Address:  en.BusinessAddress,
			Hours:    en.BusinessHours,
		},
		Currency: en.Currency,
	}
	if ar != nil {
		setLocalized(&d.Name, model.LocaleAR, firstNonEmpty(ar.BusinessName, ar.Title))
	}
	return d
}

func mergeItems(en, ar []strapiItem, currency string) []model.TourItem {
	arByDoc := make(map[string]strapiItem, len(ar))
	for _, it := range ar {
		arByDoc[itemKey(it)] = it
	}

	items := make([]model.TourItem, 0, len(en))
	for _, it := range en {
		ti := model.TourItem{
			ID:          itemKey(it),
			Title:       model.Localized{model.LocaleEN: firstNonEmpty(it.Name, it.Title, "Untitled")},
			Description: model.Localized{model.LocaleEN: it.Description},
			Category:    it.Category,
			Price:       float64(it.Price),
			Currency:    firstNonEmpty(it.Currency, currency),
			Available:   availability(it),
			Attributes:  attributes(it),
			Anchor:      anchor(it),
			Tags:        it.Tags,
		}
		if a, ok := arByDoc[ti.ID]; ok {
			setLocalized(&ti.Title, model.LocaleAR, firstNonEmpty(a.Name, a.Title))
			setLocalized(&ti.Description, model.LocaleAR, a.Description)
		}
		items = append(items, ti)
	}
	return items
}

func itemKey(it strapiItem) string {
	if it.DocumentID != "" {
		return it.DocumentID
	}
	return strconv.Itoa(it.ID)
}

func availability(it strapiItem) bool {
	switch {
	case it.InStock != nil:
		return *it.InStock
	case it.IsAvailable != nil:
		return *it.IsAvailable
	default:
		return true
	}
}

func attributes(it strapiItem) map[string]string {
	attrs := make(map[string]string, len(it.Specifications)+2)
	for k, v := range it.Specifications {
		if v == nil {
			continue
		}
		attrs[strings.ToLower(k)] = fmt.Sprint(v)
	}
	if it.Color != "" {
		attrs["color"] = it.Color
	}
	if it.Material != "" {
		attrs["material"] = it.Material
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func anchor(it strapiItem) *model.SpatialAnchor {
	switch {
	case it.Hotspot != nil && (it.Hotspot.SweepID != "" || it.Hotspot.Position != nil):
		a := &model.SpatialAnchor{SweepID: it.Hotspot.SweepID}
		if it.Hotspot.Position != nil {
			a.Position = *it.Hotspot.Position
		}
		return a
	case it.SweepID != "" || it.Position != nil:
		a := &model.SpatialAnchor{SweepID: it.SweepID}
		if it.Position != nil {
			a.Position = *it.Position
		}
		return a
	}
	return nil
}

func setLocalized(dst *model.Localized, l model.Locale, v string) {
	if v == "" {
		return
	}
	if *dst == nil {
		*dst = model.Localized{}
	}
	(*dst)[l] = v
}

func isFalse(b *bool) bool { return b != nil && !*b }

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
