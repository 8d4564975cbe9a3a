package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

func strapiServer(t *testing.T, demos map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := r.URL.Path + "|" + r.URL.Query().Get("locale")
		body, ok := demos[key]
		if !ok {
			body = `{"data":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestStrapiSourceLoadMergesLocales(t *testing.T) {
	t.Parallel()

	srv := strapiServer(t, map[string]string{
		"/api/demos|en": `{"data":[{"id":1,"documentId":"d1","slug":"casa","title":"Casa Showroom","demoType":"furniture",
			"businessPhone":"+20100","businessWhatsapp":"+20111","currency":"USD"}]}`,
		"/api/demos|ar": `{"data":[{"id":2,"documentId":"d1","slug":"casa","title":"معرض كازا"}]}`,
		"/api/demo-products|en": `{"data":[
			{"id":10,"documentId":"p-12","name":"Oslo Sofa","category":"sofa","price":"450","inStock":true,"color":"red",
			 "hotspot":{"sweepId":"sw1","position":{"x":1,"y":0,"z":2}}},
			{"id":11,"documentId":"p-45","name":"Lamp","category":"lighting","price":80,"isAvailable":false,
			 "specifications":{"Wattage":40}}]}`,
		"/api/demo-products|ar": `{"data":[{"id":20,"documentId":"p-12","name":"كنبة أوسلو"}]}`,
		"/api/ai-agent-configs|en": `{"data":[{"agentName":"Layla","persona":"Design expert","dailyMsgLimit":50}]}`,
		"/api/ai-knowledge-entries|en": `{"data":[{"question":"Delivery?","answer":"Free in Cairo","category":"shipping"}]}`,
		"/api/ai-knowledge-entries|ar": `{"data":[{"question":"التوصيل؟","answer":"مجاني في القاهرة"}]}`,
	})
	defer srv.Close()

	src := NewStrapiSource(srv.URL+"/", "secret", time.Second)
	cat, err := src.Load(context.Background(), "casa")
	require.NoError(t, err)

	assert.Equal(t, model.BusinessFurniture, cat.Demo.Type)
	assert.Equal(t, "Casa Showroom", cat.Demo.Name.Get(model.LocaleEN))
	assert.Equal(t, "معرض كازا", cat.Demo.Name.Get(model.LocaleAR))
	assert.Equal(t, "Layla", cat.Demo.AgentName.Get(model.LocaleEN))
	assert.Equal(t, 50, cat.Demo.DailyMessageLimit)
	assert.Equal(t, "+20111", cat.Demo.Contact.WhatsApp)

	require.Len(t, cat.Items, 2)
	sofa := cat.Items[0]
	assert.Equal(t, "p-12", sofa.ID)
	assert.Equal(t, "كنبة أوسلو", sofa.Title.Get(model.LocaleAR))
	assert.Equal(t, 450.0, sofa.Price)
	assert.Equal(t, "USD", sofa.Currency)
	assert.Equal(t, "red", sofa.Attributes["color"])
	require.NotNil(t, sofa.Anchor)
	assert.Equal(t, "sw1", sofa.Anchor.SweepID)

	lamp := cat.Items[1]
	assert.False(t, lamp.Available)
	assert.Nil(t, lamp.Anchor)
	assert.Equal(t, "40", lamp.Attributes["wattage"])

	require.Len(t, cat.Knowledge, 1)
	assert.Equal(t, "مجاني في القاهرة", cat.Knowledge[0].Answer.Get(model.LocaleAR))
}

func TestStrapiSourceNotFound(t *testing.T) {
	t.Parallel()

	srv := strapiServer(t, nil)
	defer srv.Close()

	_, err := NewStrapiSource(srv.URL, "secret", time.Second).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDemoNotFound)
}

func TestStrapiSourceHTTPError(t *testing.T) {
	t.Parallel()

	srv := strapiServer(t, nil)
	defer srv.Close()

	_, err := NewStrapiSource(srv.URL, "wrong-token", time.Second).Load(context.Background(), "casa")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDemoNotFound)
	assert.Contains(t, err.Error(), "401")
}

func TestCollectionFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "demo-menu-items", collectionFor(model.BusinessCafe))
	assert.Equal(t, "demo-rooms", collectionFor(model.BusinessHotel))
	assert.Equal(t, "demo-properties", collectionFor(model.BusinessRealEstate))
	assert.Equal(t, "demo-products", collectionFor(model.BusinessFurniture))
}

const sampleFile = `
demos:
  - demo:
      slug: casa
      type: furniture-showroom
      name: {en: Casa, ar: كازا}
      contact: {phone: "+20100"}
    items:
      - id: "12"
        title: {en: Oslo Sofa}
        category: sofa
        price: 450
        available: true
        attributes: {color: red}
`

func TestFileSource(t *testing.T) {
	t.Parallel()

	fs, err := ParseFileSource([]byte(sampleFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"casa"}, fs.Slugs())

	cat, err := fs.Load(context.Background(), "casa")
	require.NoError(t, err)
	assert.Equal(t, model.BusinessFurniture, cat.Demo.Type)
	assert.Equal(t, "red", cat.Items[0].Attributes["color"])
	assert.Equal(t, defaultDailyMessageLimit, cat.Demo.DailyMessageLimit)

	_, err = fs.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDemoNotFound)

	_, err = ParseFileSource([]byte("demos:\n  - demo: {type: cafe}\n"))
	assert.Error(t, err)
}
