package crm

import (
	"AgentDesk/entity"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSalesforce(t *testing.T, sobjects http.HandlerFunc) *Salesforce {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"sf-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/Lead/", sobjects)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewSalesforce(context.Background(), Config{
		InstanceURL:  srv.URL,
		TokenURL:     srv.URL + "/oauth2/token",
		ClientID:     "id",
		ClientSecret: "secret",
		LeadSource:   "Meta Ads",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateLead(t *testing.T) {
	var got leadRecord
	sf := newTestSalesforce(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sf-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00Q1","success":true,"errors":[]}`))
	})

	lead := &entity.Lead{ID: "L1", Fields: map[string]string{"full_name": "Ann Maria Lee", "email": "ann@example.com"}}
	id, err := sf.CreateLead(context.Background(), lead, &entity.Enrichment{Summary: "warm", Score: 55, Segment: "smb"})
	require.NoError(t, err)
	assert.Equal(t, "00Q1", id)

	assert.Equal(t, "Ann Maria", got.FirstName)
	assert.Equal(t, "Lee", got.LastName)
	assert.Equal(t, "Unknown", got.Company)
	assert.Equal(t, "Warm", got.Rating)
	assert.Equal(t, "Meta Ads", got.LeadSource)
}

func TestCreateLead_Rejected(t *testing.T) {
	sf := newTestSalesforce(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`[{"message":"Required fields are missing","errorCode":"REQUIRED_FIELD_MISSING"}]`))
	})
	_, err := sf.CreateLead(context.Background(), &entity.Lead{ID: "L2"}, nil)
	assert.ErrorContains(t, err, "REQUIRED_FIELD_MISSING")
}

func TestRecord_NoName(t *testing.T) {
	sf := &Salesforce{}
	r := sf.toRecord(&entity.Lead{ID: "L3"}, nil)
	assert.Equal(t, "Lead L3", r.LastName)
	assert.Empty(t, r.Rating)
}

func TestRating(t *testing.T) {
	assert.Equal(t, "Hot", Rating(90))
	assert.Equal(t, "Warm", Rating(40))
	assert.Equal(t, "Cold", Rating(10))
}
