package upiclient_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox/memory"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
	"github.com/frahmantamala/upi-sandbox/internal/upiclient"
	"github.com/go-chi/chi"
	"github.com/jonboulle/clockwork"
)

var _ = Describe("Client against the sandbox", func() {
	var (
		service *sandbox.Service
		server  *httptest.Server
		client  *upiclient.Client
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		policies := sandbox.NewPolicyTable(map[string]sandbox.Policy{
			"success@*": {Succeeds: true, Delay: 30 * time.Millisecond},
			"failure@*": {Succeeds: false, Delay: 30 * time.Millisecond},
			"timeout@*": {Succeeds: false, Delay: time.Minute, ErrorCode: "timeout"},
		}, sandbox.DefaultFallback(), nil)

		var err error
		service, err = sandbox.NewService(memory.NewRepository(), policies, clockwork.NewRealClock(), nil, nil, testLogger)
		Expect(err).NotTo(HaveOccurred())

		router := chi.NewRouter()
		router.Route("/v1", sandbox.NewHandler(transport.NewBaseHandler(testLogger), service).Routes)
		server = httptest.NewServer(router)

		client = upiclient.NewClient(upiclient.Config{
			BaseURL:      server.URL + "/v1",
			MaxAttempts:  50,
			PollInterval: 10 * time.Millisecond,
		}, nil, testLogger)

		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		cancel()
		server.Close()
		service.Shutdown()
	})

	It("should capture a payment from the success VPA", func() {
		result := client.ProcessPayment(ctx, 100, "success@razorpay", "")

		Expect(result.Error).To(BeEmpty())
		Expect(result.Success).To(BeTrue())
		Expect(result.Order.Amount).To(Equal(int64(10000)))
		Expect(result.Payment.Status).To(Equal("captured"))
		Expect(result.Payment.CapturedAt).NotTo(BeNil())
		Expect(result.Payment.OrderID).To(Equal(result.Order.ID))
	})

	It("should fail a payment from the failure VPA", func() {
		result := client.ProcessPayment(ctx, 50.5, "failure@razorpay", "")

		Expect(result.Error).To(BeEmpty())
		Expect(result.Success).To(BeFalse())
		Expect(result.Payment.Status).To(Equal("failed"))
		Expect(*result.Payment.ErrorCode).To(Equal("payment_failed"))
		Expect(*result.Payment.ErrorDescription).To(Equal("Payment declined by bank"))
	})

	It("should give up polling a payment that resolves too late", func() {
		order, err := client.CreateOrder(ctx, 10, "")
		Expect(err).NotTo(HaveOccurred())
		payment, err := client.InitiatePayment(ctx, order.ID, 10, "timeout@razorpay")
		Expect(err).NotTo(HaveOccurred())

		_, err = client.PollStatus(ctx, payment.ID, upiclient.PollOptions{MaxAttempts: 3, Interval: 10 * time.Millisecond})

		Expect(errors.Is(err, internal.ErrPollTimeout)).To(BeTrue())
	})

	It("should keep reporting the same terminal state", func() {
		result := client.ProcessPayment(ctx, 1, "success@razorpay", "")
		Expect(result.Success).To(BeTrue())

		for i := 0; i < 3; i++ {
			payment, err := client.GetPaymentStatus(ctx, result.Payment.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(payment).To(Equal(result.Payment))
		}
	})

	It("should report an unknown order", func() {
		_, err := client.InitiatePayment(ctx, "order_doesnotexist", 1, "success@razorpay")

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeOrderNotFound))
		Expect(appErr.Message).To(Equal("Order not found"))
	})

	It("should report an unknown payment", func() {
		_, err := client.GetPaymentStatus(ctx, "pay_doesnotexist")

		Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeTrue())
	})

	It("should process a batch and keep the input order", func() {
		intents := []upiclient.PaymentIntent{
			{Amount: 1, VPA: "success@razorpay"},
			{Amount: 2, VPA: "failure@razorpay"},
			{Amount: 3, VPA: "success@okaxis"},
			{Amount: 0, VPA: "success@razorpay"},
			{Amount: 5, VPA: "failure@ybl"},
		}

		results := client.ProcessBatch(ctx, intents, 3)

		Expect(results).To(HaveLen(len(intents)))
		for i, intent := range intents {
			Expect(results[i].Amount).To(Equal(intent.Amount))
			Expect(results[i].VPA).To(Equal(intent.VPA))
		}
		Expect(results[0].Success).To(BeTrue())
		Expect(results[1].Success).To(BeFalse())
		Expect(results[1].Error).To(BeEmpty())
		Expect(results[2].Success).To(BeTrue())
		Expect(results[3].Err).To(MatchError(internal.ErrInvalidAmount))
		Expect(results[4].Payment.Status).To(Equal("failed"))
	})

	It("should mark every intent cancelled when the context is already done", func() {
		cancelled, cancelNow := context.WithCancel(ctx)
		cancelNow()

		results := client.ProcessBatch(cancelled, []upiclient.PaymentIntent{
			{Amount: 1, VPA: "success@razorpay"},
			{Amount: 2, VPA: "success@razorpay"},
		}, 2)

		Expect(results).To(HaveLen(2))
		for _, r := range results {
			Expect(r.Success).To(BeFalse())
			Expect(r.Err).To(MatchError(context.Canceled))
		}
	})

	It("should acknowledge a webhook", func() {
		ack, err := client.SendWebhook(ctx, "payment.failed", nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(ack.Received).To(BeTrue())
		Expect(ack.Timestamp).NotTo(BeZero())
	})
})
