package sbiepay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

func newTestClient(t *testing.T, dvURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		MerchantID:    "1000605",
		EncryptionKey: testKey,
		AggregatorID:  "SBIEPAY",
		SuccessURL:    "https://api.example.org/payments/sbiepay/success",
		FailURL:       "https://api.example.org/payments/sbiepay/failure",
		GatewayURL:    "https://test.sbiepay.sbi/secure/AggregatorHostedListener",
		DVQueryURL:    dvURL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// responsePacket encrypts a gateway response packet for order SK-1001.
func responsePacket(t *testing.T, c *Client, status string) string {
	t.Helper()
	packet, err := c.codec.Encode([]string{
		"SK-1001", "ATRN-77", status, "5000.00", "INR", "NB", "", "",
		"SBI", "REF55", "2024-01-01", "IN", "CIN9", "1000605", "0.00",
	})
	if err != nil {
		t.Fatal(err)
	}
	return packet
}

func TestCreatePaymentPacket(t *testing.T) {
	c := newTestClient(t, "")

	form, err := c.CreatePayment("SK-1001", 5000.00, "")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if form.FormData["merchIdVal"] != "1000605" {
		t.Errorf("merchIdVal = %q", form.FormData["merchIdVal"])
	}
	if form.FormData["EncryptTrans"] != form.EncryptedTrans {
		t.Error("form EncryptTrans does not match encrypted packet")
	}
	if form.GatewayURL == "" {
		t.Error("gateway URL missing")
	}

	fields, err := c.codec.Decode(form.EncryptedTrans)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []string{
		"1000605", "DOM", "IN", "INR", "5000.00", "NA",
		"https://api.example.org/payments/sbiepay/success",
		"https://api.example.org/payments/sbiepay/failure",
		"SBIEPAY", "SK-1001", "NA", "NB", "ONLINE", "ONLINE",
	}
	if strings.Join(fields, "|") != strings.Join(want, "|") {
		t.Errorf("packet = %q\nwant     %q", fields, want)
	}
}

func TestCreatePaymentRejectsBadInput(t *testing.T) {
	c := newTestClient(t, "")
	if _, err := c.CreatePayment("", 10, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
	if _, err := c.CreatePayment("SK-1", 0, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestHandleResponse(t *testing.T) {
	c := newTestClient(t, "")

	resp, err := c.HandleResponse(responsePacket(t, c, "SUCCESS"))
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}

	if resp.OrderID != "SK-1001" || resp.ReferenceID != "ATRN-77" {
		t.Errorf("unexpected ids %q %q", resp.OrderID, resp.ReferenceID)
	}
	if resp.Status != domain.PaymentSuccess {
		t.Errorf("status = %s, want success", resp.Status)
	}
	if resp.Amount != 5000.00 {
		t.Errorf("amount = %v", resp.Amount)
	}
	if resp.Metadata.BankCode != "SBI" || resp.Metadata.BankReferenceNumber != "REF55" || resp.Metadata.PayMode != "NB" {
		t.Errorf("unexpected metadata %+v", resp.Metadata)
	}
}

func TestHandleResponseErrors(t *testing.T) {
	c := newTestClient(t, "")

	short, err := c.codec.Encode([]string{"SK-1001", "ATRN-77", "SUCCESS"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.HandleResponse(short); !errors.Is(err, domain.ErrMalformedPacket) {
		t.Errorf("short packet: got %v, want ErrMalformedPacket", err)
	}

	if _, err := c.HandleResponse("garbage"); !domain.IsCodecError(err) {
		t.Errorf("garbage: got %v, want a codec error", err)
	}

	badAmount, err := c.codec.Encode([]string{
		"SK-1001", "ATRN-77", "SUCCESS", "five", "INR", "NB", "", "",
		"SBI", "REF55", "2024-01-01", "IN", "CIN9", "1000605", "0.00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.HandleResponse(badAmount); !errors.Is(err, domain.ErrMalformedPacket) {
		t.Errorf("bad amount: got %v, want ErrMalformedPacket", err)
	}

	for _, amount := range []string{"NaN", "Inf", "-Inf"} {
		packet, err := c.codec.Encode([]string{
			"SK-1001", "ATRN-77", "SUCCESS", amount, "INR", "NB", "", "",
			"SBI", "REF55", "2024-01-01", "IN", "CIN9", "1000605", "0.00",
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.HandleResponse(packet); !errors.Is(err, domain.ErrMalformedPacket) {
			t.Errorf("amount %s: got %v, want ErrMalformedPacket", amount, err)
		}
	}
}

func TestVerifyTransaction(t *testing.T) {
	var gotQuery, gotAggregator, gotMerchant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotQuery = r.PostForm.Get("queryRequest")
		gotAggregator = r.PostForm.Get("aggregatorId")
		gotMerchant = r.PostForm.Get("merchantId")
		w.Write([]byte("1000605|ATRN-77|SUCCESS|IN|INR|NA|SK-1001|5000.00|Transaction Paid Out|SBI|REF55|2024-01-01 10:00:00|NB|CIN9|1000605|0.00\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.VerifyTransaction(context.Background(), "ATRN-77", "SK-1001", 5000)
	if err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}

	if gotQuery != "ATRN-77|1000605|SK-1001|5000.00" {
		t.Errorf("queryRequest = %q", gotQuery)
	}
	if gotAggregator != "SBIEPAY" || gotMerchant != "1000605" {
		t.Errorf("aggregatorId=%q merchantId=%q", gotAggregator, gotMerchant)
	}
	if resp.Status != domain.PaymentSuccess || resp.OrderID != "SK-1001" || resp.Amount != 5000 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Metadata.ReasonMessage != "Transaction Paid Out" {
		t.Errorf("reason = %q", resp.Metadata.ReasonMessage)
	}
	if resp.Verification == "" {
		t.Error("verification reply not kept")
	}
}

func TestVerifyTransactionWithoutReference(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuery = r.PostForm.Get("queryRequest")
		w.Write([]byte("1000605||PENDING|IN|INR|NA|SK-1001|5000.00|Pending|||||||"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.VerifyTransaction(context.Background(), "", "SK-1001", 5000)
	if err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
	if gotQuery != "|1000605|SK-1001|5000.00" {
		t.Errorf("queryRequest = %q", gotQuery)
	}
	if resp.Status != domain.PaymentPending {
		t.Errorf("status = %s, want pending", resp.Status)
	}
}

func TestVerifyTransactionErrors(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")
	if _, err := c.VerifyTransaction(context.Background(), "", "", 0); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("no ids: got %v, want ErrInvalidRequest", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			w.Write([]byte("1000605|ATRN-77|SUCCESS"))
			return
		}
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c = newTestClient(t, srv.URL)
	_, err := c.VerifyTransaction(context.Background(), "ATRN-77", "SK-1001", 5000)
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) || gwErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got %v, want GatewayError 503", err)
	}
	if !errors.Is(err, domain.ErrGateway) {
		t.Error("GatewayError should unwrap to ErrGateway")
	}

	c = newTestClient(t, srv.URL+"/short")
	if _, err := c.VerifyTransaction(context.Background(), "ATRN-77", "SK-1001", 5000); !errors.Is(err, domain.ErrMalformedPacket) {
		t.Errorf("short reply: got %v, want ErrMalformedPacket", err)
	}

	srv.Close()
	c = newTestClient(t, srv.URL)
	if _, err := c.VerifyTransaction(context.Background(), "ATRN-77", "SK-1001", 5000); !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("closed server: got %v, want ErrNetwork", err)
	}
}
