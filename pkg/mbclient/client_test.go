package mbclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
)

func TestInquiryAccountNameSendsPortalHeaders(t *testing.T) {
	var gotBody domain.InquiryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != inquiryPath {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Basic test" {
			t.Fatalf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Refno") != "REF-1" || r.Header.Get("Deviceid") != "dev-1" {
			t.Fatalf("missing refNo/device headers: %v", r.Header)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Fatalf("failed to unmarshal request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"benName":"NGUYEN VAN A","result":{"ok":true,"responseCode":"00","message":"OK"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "Basic test")
	resp, err := c.InquiryAccountName(context.Background(), domain.InquiryRequest{
		CreditAccount:     "0123456789",
		CreditAccountType: "ACCOUNT",
		BankCode:          "970422",
		Type:              domain.InquiryTypeInHouse,
		SessionID:         "S1",
		RefNo:             "REF-1",
		DeviceIDCommon:    "dev-1",
	})
	if err != nil {
		t.Fatalf("InquiryAccountName returned error: %v", err)
	}
	if resp.BenName != "NGUYEN VAN A" || !resp.Result.Succeeded() {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotBody.SessionID != "S1" || gotBody.Type != "INHOUSE" || gotBody.CreditAccount != "0123456789" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
}

func TestDoReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").DoLogin(context.Background(), domain.LoginRequest{DataEnc: "x"}, "r", "d")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Op != "doLogin" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestPortalResultIsReturnedForClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"ok":false,"responseCode":"GW200","message":"Session invalid"}}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "").GetFavorBeneficiaryList(context.Background(), domain.KeepAliveRequest{})
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if resp.Result.Succeeded() || resp.Result.ResponseCode != domain.ResponseCodeSessionExpired {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
}

func TestFetchKeyMaterial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/keys/enc.js" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("function bder(){}"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithKeyMaterialPath("/keys/enc.js"))
	blob, err := c.FetchKeyMaterial(context.Background())
	if err != nil {
		t.Fatalf("FetchKeyMaterial returned error: %v", err)
	}
	if string(blob) != "function bder(){}" {
		t.Fatalf("unexpected blob %q", blob)
	}

	if _, err := NewClient(server.URL, "", WithKeyMaterialPath("/missing.js")).FetchKeyMaterial(context.Background()); err == nil {
		t.Fatal("expected error for missing key material")
	}
	if _, err := NewClient(server.URL, "").FetchKeyMaterial(context.Background()); !errors.Is(err, ErrNoKeyMaterialPath) {
		t.Fatalf("expected ErrNoKeyMaterialPath without a configured path, got %v", err)
	}
}

func TestRefNoGeneratorIsUnique(t *testing.T) {
	g := NewRefNoGenerator("nguyenkhoa0721")
	fixed := time.Date(2025, 1, 17, 11, 13, 32, 770_000_000, time.UTC)
	g.now = func() time.Time { return fixed }

	first, second := g.Next(), g.Next()
	if first == second {
		t.Fatalf("expected unique refNos, got %q twice", first)
	}
	if first != "NGUYENKHOA0721-20250117111332770-1" {
		t.Fatalf("unexpected refNo format %q", first)
	}
	if !strings.HasSuffix(second, "-2") {
		t.Fatalf("expected sequence suffix, got %q", second)
	}
}
