// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/overlap-engine/internal/httputil"
	"github.com/pdiddy/overlap-engine/internal/metrics"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

// dataForSEOBase is the provider API root. Declared as a var so tests can
// substitute an httptest server.
var dataForSEOBase = "https://api.dataforseo.com/v3"

const (
	serpPath     = "/serp/google/organic/live/advanced"
	rankingsPath = "/dataforseo_labs/google/ranked_keywords/live"
	pingPath     = "/appendix/user_data"

	// Fixed market/locale. The overlap signal only makes sense when the
	// seed and every candidate are queried against the same market.
	locationName = "United States"
	languageCode = "en"

	statusOK = 20000
)

// DataForSEO implements SERPClient and RankingsClient against the
// DataForSEO v3 live endpoints using HTTP basic auth.
type DataForSEO struct {
	Client   *http.Client
	Login    string
	Password string
	HTTP     types.HTTPConfig
}

// NewDataForSEO builds a provider client. A nil httpClient falls back to
// http.DefaultClient; per-call deadlines come from the caller's context.
func NewDataForSEO(httpClient *http.Client, login, password string, cfg types.HTTPConfig) *DataForSEO {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DataForSEO{Client: httpClient, Login: login, Password: password, HTTP: cfg}
}

// TopResults fetches up to depth ranked organic result URLs for phrase.
func (c *DataForSEO) TopResults(ctx context.Context, phrase string, depth int) ([]string, error) {
	payload := []map[string]any{{
		"keyword":       phrase,
		"location_name": locationName,
		"language_code": languageCode,
		"depth":         depth,
	}}

	var env serpEnvelope
	if err := c.post(ctx, serpPath, payload, &env); err != nil {
		return nil, err
	}
	if err := env.check("serp"); err != nil {
		return nil, err
	}

	var urls []string
	for _, item := range env.firstResult().Items {
		if item.Type != "organic" || item.URL == "" {
			continue
		}
		urls = append(urls, item.URL)
		if len(urls) >= depth {
			break
		}
	}
	return urls, nil
}

// RankedPhrases fetches up to limit phrases that url ranks for, with
// volume, CPC, and the rank position url holds for each phrase.
func (c *DataForSEO) RankedPhrases(ctx context.Context, url string, limit int) ([]types.RankedPhrase, error) {
	payload := []map[string]any{{
		"target":        url,
		"location_name": locationName,
		"language_code": languageCode,
		"limit":         limit,
	}}

	var env rankingsEnvelope
	if err := c.post(ctx, rankingsPath, payload, &env); err != nil {
		return nil, err
	}
	if err := env.check("rankings"); err != nil {
		return nil, err
	}

	var phrases []types.RankedPhrase
	for _, item := range env.firstResult().Items {
		phrases = append(phrases, types.RankedPhrase{
			Text:     item.KeywordData.Keyword,
			Volume:   item.KeywordData.KeywordInfo.SearchVolume,
			CPC:      item.KeywordData.KeywordInfo.CPC,
			Position: item.RankedElement.SERPItem.RankGroup,
		})
	}
	return phrases, nil
}

// Verify checks that the configured credentials are accepted by the
// provider. Callers may retry a failed verification once before starting
// pipeline work.
func (c *DataForSEO) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataForSEOBase+pingPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.prepare(req)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return wrapTransport(err, "verify request")
	}
	defer resp.Body.Close()
	metrics.APICall("verify", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &APIError{Class: ClassAuth, Status: resp.StatusCode, Message: "credentials rejected"}
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Class: ClassUpstream, Status: resp.StatusCode, Message: "unexpected verify status"}
	}
	return nil
}

// post sends a JSON array payload to path and decodes the envelope into out.
func (c *DataForSEO) post(ctx context.Context, path string, payload any, out envelopeChecker) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dataForSEOBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.prepare(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return wrapTransport(err, "provider request")
	}
	defer resp.Body.Close()
	metrics.APICall(path, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &APIError{Class: ClassAuth, Status: resp.StatusCode, Message: "credentials rejected"}
	case resp.StatusCode == http.StatusBadRequest:
		return &APIError{Class: ClassBadRequest, Status: resp.StatusCode, Message: "request rejected"}
	case resp.StatusCode != http.StatusOK:
		return &APIError{Class: ClassUpstream, Status: resp.StatusCode, Message: "unexpected status"}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Class: ClassUpstream, Message: fmt.Sprintf("parsing response: %v", err)}
	}
	return nil
}

func (c *DataForSEO) prepare(req *http.Request) {
	req.SetBasicAuth(c.Login, c.Password)
	if c.HTTP.UserAgent != "" {
		req.Header.Set("User-Agent", c.HTTP.UserAgent)
	}
}

// --- provider envelope ---

// The provider wraps every response in a status envelope: 20000 means OK,
// 401xx means auth failure, other 4xxxx codes mean the request was
// malformed, and 5xxxx codes are provider-side.
type envelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

type envelopeChecker interface {
	check(what string) error
}

func (e envelope) classify(what string) error {
	if e.StatusCode == statusOK {
		return nil
	}
	class := ClassUpstream
	switch {
	case e.StatusCode >= 40100 && e.StatusCode < 40200:
		class = ClassAuth
	case e.StatusCode >= 40000 && e.StatusCode < 50000:
		class = ClassBadRequest
	}
	return &APIError{Class: class, Status: e.StatusCode, Message: fmt.Sprintf("%s: %s", what, e.StatusMessage)}
}

type serpEnvelope struct {
	envelope
	Tasks []serpTask `json:"tasks"`
}

type serpTask struct {
	envelope
	Result []serpResult `json:"result"`
}

type serpResult struct {
	Items []serpItem `json:"items"`
}

type serpItem struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (e *serpEnvelope) check(what string) error {
	if err := e.envelope.classify(what); err != nil {
		return err
	}
	if len(e.Tasks) == 0 {
		return &APIError{Class: ClassUpstream, Message: what + ": empty task list"}
	}
	return e.Tasks[0].classify(what + " task")
}

func (e *serpEnvelope) firstResult() serpResult {
	if len(e.Tasks) == 0 || len(e.Tasks[0].Result) == 0 {
		return serpResult{}
	}
	return e.Tasks[0].Result[0]
}

type rankingsEnvelope struct {
	envelope
	Tasks []rankingsTask `json:"tasks"`
}

type rankingsTask struct {
	envelope
	Result []rankingsResult `json:"result"`
}

type rankingsResult struct {
	Items []rankingsItem `json:"items"`
}

type rankingsItem struct {
	KeywordData   keywordData   `json:"keyword_data"`
	RankedElement rankedElement `json:"ranked_serp_element"`
}

type keywordData struct {
	Keyword     string      `json:"keyword"`
	KeywordInfo keywordInfo `json:"keyword_info"`
}

type keywordInfo struct {
	SearchVolume int     `json:"search_volume"`
	CPC          float64 `json:"cpc"`
}

type rankedElement struct {
	SERPItem serpElementItem `json:"serp_item"`
}

type serpElementItem struct {
	RankGroup int `json:"rank_group"`
}

func (e *rankingsEnvelope) check(what string) error {
	if err := e.envelope.classify(what); err != nil {
		return err
	}
	if len(e.Tasks) == 0 {
		return &APIError{Class: ClassUpstream, Message: what + ": empty task list"}
	}
	return e.Tasks[0].classify(what + " task")
}

func (e *rankingsEnvelope) firstResult() rankingsResult {
	if len(e.Tasks) == 0 || len(e.Tasks[0].Result) == 0 {
		return rankingsResult{}
	}
	return e.Tasks[0].Result[0]
}
