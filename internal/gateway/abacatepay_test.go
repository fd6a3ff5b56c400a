package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/packpay/internal/gateway"
	"github.com/frahmantamala/packpay/pkg/logger"
)

var _ = Describe("AbacatePayAdapter", func() {
	var (
		server  *httptest.Server
		adapter *gateway.AbacatePayAdapter
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		adapter = gateway.NewAbacatePayAdapter(gateway.AbacatePayConfig{
			APIURL:        server.URL,
			APIKey:        "abc-key",
			WebhookSecret: "abacsecret",
		}, logger.L())
	})

	AfterEach(func() {
		server.Close()
	})

	It("authenticates with a bearer token and carries the external id in metadata", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/pixQrCode/create"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer abc-key"))

			var payload map[string]interface{}
			Expect(json.NewDecoder(r.Body).Decode(&payload)).To(Succeed())
			metadata := payload["metadata"].(map[string]interface{})
			Expect(metadata["externalId"]).To(Equal("ext-7"))

			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id":           "ab-pix-1",
					"status":       "PENDING",
					"brCode":       "00020126abacate...",
					"brCodeBase64": "aGVsbG8=",
					"expiresAt":    "2026-09-01T12:00:00Z",
				},
			})
		}

		charge, err := adapter.GeneratePixCharge(context.Background(), gateway.ChargeRequest{
			Amount:           4990,
			ExternalID:       "ext-7",
			ExpiresInMinutes: 30,
			Customer: gateway.Customer{
				Name:     "Rafael",
				Email:    "rafael@mail.com",
				Document: "52998224725",
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(charge.GatewayID).To(Equal("ab-pix-1"))
		Expect(charge.QRCode).To(Equal("aGVsbG8="))
	})

	It("executes a withdraw and maps IN_PROGRESS to processing", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/withdraw/create"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id":     "ab-wd-1",
					"status": "IN_PROGRESS",
				},
			})
		}

		payout, err := adapter.ExecutePayout(context.Background(), gateway.PayoutRequest{
			Amount:            10000,
			ExternalID:        "ext-wd-1",
			PixKey:            "marina@mail.com",
			PixKeyType:        "email",
			RecipientName:     "Marina",
			RecipientDocument: "52998224725",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(payout.GatewayID).To(Equal("ab-wd-1"))
		Expect(payout.Status).To(Equal(gateway.PayoutStatusProcessing))
	})

	It("parses withdraw webhooks into canonical payout events", func() {
		body := []byte(`{"id":"ab-evt-1","event":"withdraw.done","createdAt":"2026-08-31T19:00:00Z","data":{"id":"ab-wd-1"}}`)

		Expect(adapter.ValidateWebhookSignature(body, signSHA256("abacsecret", body))).To(BeTrue())

		ev, err := adapter.ParseWebhookEvent(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Type).To(Equal(gateway.EventPayoutCompleted))
		Expect(ev.GatewayID).To(Equal("ab-wd-1"))
		Expect(ev.EventID).To(Equal("ab-evt-1"))
	})

	It("rejects webhooks missing the transaction id", func() {
		_, err := adapter.ParseWebhookEvent([]byte(`{"id":"ab-evt-2","event":"pix.paid","data":{}}`))
		gwErr, ok := gateway.IsGatewayError(err)
		Expect(ok).To(BeTrue())
		Expect(gwErr.Code).To(Equal(gateway.ErrCodeInvalidRequest))
	})
})
