package gateway_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/packpay/internal/gateway"
)

func signSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("Document helpers", func() {
	It("strips formatting from a CPF", func() {
		Expect(gateway.NormalizeDocument("529.982.247-25")).To(Equal("52998224725"))
	})

	It("accepts an 11 digit CPF and a 14 digit CNPJ", func() {
		Expect(gateway.IsValidDocument("529.982.247-25")).To(BeTrue())
		Expect(gateway.IsValidDocument("11.222.333/0001-81")).To(BeTrue())
	})

	It("rejects documents of any other length", func() {
		Expect(gateway.IsValidDocument("12345")).To(BeFalse())
		Expect(gateway.IsValidDocument("")).To(BeFalse())
	})
})

var _ = Describe("FormatAmount", func() {
	It("renders cents as a decimal string", func() {
		Expect(gateway.FormatAmount(2990)).To(Equal("29.90"))
		Expect(gateway.FormatAmount(100)).To(Equal("1.00"))
		Expect(gateway.FormatAmount(5)).To(Equal("0.05"))
	})
})

var _ = Describe("ValidHMACHex", func() {
	body := []byte(`{"event":"pix.paid"}`)

	It("accepts a correctly signed body", func() {
		sig := signSHA256("topsecret", body)
		Expect(gateway.ValidHMACHex(sha256.New, "topsecret", body, sig)).To(BeTrue())
	})

	It("rejects a signature produced with another secret", func() {
		sig := signSHA256("wrong", body)
		Expect(gateway.ValidHMACHex(sha256.New, "topsecret", body, sig)).To(BeFalse())
	})

	It("rejects a tampered body", func() {
		sig := signSHA256("topsecret", body)
		Expect(gateway.ValidHMACHex(sha256.New, "topsecret", []byte(`{"event":"pix.refunded"}`), sig)).To(BeFalse())
	})

	It("fails closed when no secret is configured", func() {
		sig := signSHA256("", body)
		Expect(gateway.ValidHMACHex(sha256.New, "", body, sig)).To(BeFalse())
	})

	It("rejects non-hex signature headers", func() {
		Expect(gateway.ValidHMACHex(sha256.New, "topsecret", body, "not-hex!")).To(BeFalse())
	})
})

var _ = Describe("Request validation", func() {
	It("rejects a charge without a valid customer document", func() {
		err := gateway.ValidateChargeRequest("openpix", gateway.ChargeRequest{
			Amount:     1000,
			ExternalID: "ext-1",
			Customer:   gateway.Customer{Document: "123"},
		})
		gwErr, ok := gateway.IsGatewayError(err)
		Expect(ok).To(BeTrue())
		Expect(gwErr.Code).To(Equal(gateway.ErrCodeInvalidRequest))
	})

	It("rejects a payout without a pix key", func() {
		err := gateway.ValidatePayoutRequest("openpix", gateway.PayoutRequest{
			Amount:            1000,
			ExternalID:        "ext-1",
			RecipientDocument: "52998224725",
		})
		gwErr, ok := gateway.IsGatewayError(err)
		Expect(ok).To(BeTrue())
		Expect(gwErr.Code).To(Equal(gateway.ErrCodeInvalidRequest))
	})
})

var _ = Describe("ErrorFromHTTPStatus", func() {
	It("maps provider HTTP statuses to the canonical taxonomy", func() {
		Expect(gateway.ErrorFromHTTPStatus("openpix", 401, "").Code).To(Equal(gateway.ErrCodeAuthenticationFailed))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 403, "").Code).To(Equal(gateway.ErrCodeAuthenticationFailed))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 404, "").Code).To(Equal(gateway.ErrCodeTransactionNotFound))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 429, "").Code).To(Equal(gateway.ErrCodeRateLimitExceeded))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 400, "bad amount").Code).To(Equal(gateway.ErrCodeInvalidRequest))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 503, "").Code).To(Equal(gateway.ErrCodeGatewayUnavailable))
		Expect(gateway.ErrorFromHTTPStatus("openpix", 302, "").Code).To(Equal(gateway.ErrCodeUnknown))
	})

	It("recognizes pix key complaints in validation failures", func() {
		err := gateway.ErrorFromHTTPStatus("abacatepay", 422, `{"error":"invalid PIX key format"}`)
		Expect(err.Code).To(Equal(gateway.ErrCodeInvalidPixKey))
	})
})
