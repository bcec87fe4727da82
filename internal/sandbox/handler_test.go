package sandbox_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox/memory"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
	"github.com/go-chi/chi"
	"github.com/jonboulle/clockwork"
)

var _ = Describe("Handler", func() {
	var (
		router  *chi.Mux
		service *sandbox.Service
		clock   *clockwork.FakeClock
	)

	BeforeEach(func() {
		testLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		clock = clockwork.NewFakeClock()

		var err error
		service, err = sandbox.NewService(
			memory.NewRepository(),
			sandbox.NewPolicyTable(sandbox.DefaultPolicies(), sandbox.DefaultFallback(), nil),
			clock, nil, nil, testLogger)
		Expect(err).NotTo(HaveOccurred())

		handler := sandbox.NewHandler(transport.NewBaseHandler(testLogger), service)
		router = chi.NewRouter()
		router.Route("/v1", handler.Routes)
	})

	AfterEach(func() {
		service.Shutdown()
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorOf := func(rec *httptest.ResponseRecorder) string {
		var resp upi.ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp.Error
	}

	createOrder := func() upi.Order {
		rec := do(http.MethodPost, "/v1/orders", `{"amount":10000,"receipt":"rcpt_1"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var order upi.Order
		Expect(json.Unmarshal(rec.Body.Bytes(), &order)).To(Succeed())
		return order
	}

	Describe("POST /v1/orders", func() {
		It("should return 201 with the order", func() {
			rec := do(http.MethodPost, "/v1/orders", `{"amount":10000,"currency":"INR","receipt":"rcpt_1"}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["id"]).To(HavePrefix("order_"))
			Expect(body["amount"]).To(BeEquivalentTo(10000))
			Expect(body["currency"]).To(Equal("INR"))
			Expect(body["receipt"]).To(Equal("rcpt_1"))
			Expect(body["payment_capture"]).To(BeEquivalentTo(1))
			Expect(body["status"]).To(Equal("created"))
			Expect(body).To(HaveKey("created_at"))
		})

		It("should reject a zero amount", func() {
			rec := do(http.MethodPost, "/v1/orders", `{"amount":0}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal("Invalid amount"))
		})

		It("should reject a malformed body", func() {
			rec := do(http.MethodPost, "/v1/orders", `{"amount":`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal("Invalid JSON body"))
		})
	})

	Describe("POST /v1/payments", func() {
		It("should return 200 with a created payment", func() {
			order := createOrder()

			rec := do(http.MethodPost, "/v1/payments", `{"amount":10000,"order_id":"`+order.ID+`","vpa":"success@razorpay"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["id"]).To(HavePrefix("pay_"))
			Expect(body["entity"]).To(Equal("payment"))
			Expect(body["status"]).To(Equal("created"))
			Expect(body["method"]).To(Equal("upi"))
			Expect(body["order_id"]).To(Equal(order.ID))
			Expect(body).NotTo(HaveKey("captured_at"))
			Expect(body).NotTo(HaveKey("error_code"))
		})

		It("should reject missing fields", func() {
			rec := do(http.MethodPost, "/v1/payments", `{"amount":10000}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal("Missing required fields"))
		})

		It("should return 404 for an unknown order", func() {
			rec := do(http.MethodPost, "/v1/payments", `{"amount":10000,"order_id":"order_nope","vpa":"success@razorpay"}`)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorOf(rec)).To(Equal("Order not found"))
		})
	})

	Describe("GET /v1/payments/{id}", func() {
		It("should return the current state", func() {
			order := createOrder()
			rec := do(http.MethodPost, "/v1/payments", `{"amount":500,"order_id":"`+order.ID+`","vpa":"failure@razorpay"}`)
			var payment upi.Payment
			Expect(json.Unmarshal(rec.Body.Bytes(), &payment)).To(Succeed())

			clock.Advance(time.Second)

			Eventually(func() string {
				rec := do(http.MethodGet, "/v1/payments/"+payment.ID, "")
				var current upi.Payment
				_ = json.Unmarshal(rec.Body.Bytes(), &current)
				return current.Status
			}).Should(Equal("failed"))

			rec = do(http.MethodGet, "/v1/payments/"+payment.ID, "")
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["error_code"]).To(Equal("payment_failed"))
			Expect(body["error_description"]).To(Equal("Payment declined by bank"))
		})

		It("should return 404 for an unknown payment", func() {
			rec := do(http.MethodGet, "/v1/payments/pay_nope", "")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorOf(rec)).To(Equal("Payment not found"))
		})
	})

	Describe("DELETE /v1/payments/{id}", func() {
		It("should return 204 and forget the payment", func() {
			order := createOrder()
			rec := do(http.MethodPost, "/v1/payments", `{"amount":500,"order_id":"`+order.ID+`","vpa":"slow@razorpay"}`)
			var payment upi.Payment
			Expect(json.Unmarshal(rec.Body.Bytes(), &payment)).To(Succeed())

			rec = do(http.MethodDelete, "/v1/payments/"+payment.ID, "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Body.Len()).To(BeZero())

			rec = do(http.MethodGet, "/v1/payments/"+payment.ID, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /v1/webhook/payment", func() {
		It("should acknowledge any event", func() {
			rec := do(http.MethodPost, "/v1/webhook/payment", `{"event":"payment.captured","payload":{"payment_id":"pay_1"}}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var ack map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &ack)).To(Succeed())
			Expect(ack["received"]).To(BeTrue())
			Expect(ack).To(HaveKey("timestamp"))
		})
	})
})
