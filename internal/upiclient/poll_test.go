package upiclient_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/upiclient"
	"github.com/jonboulle/clockwork"
)

type failingTransport struct {
	calls atomic.Int32
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("connection refused")
}

type pollOutcome struct {
	result *upiclient.PollResult
	err    error
}

var _ = Describe("PollStatus", func() {
	const interval = 2 * time.Second

	var (
		server *scriptedServer
		clock  *clockwork.FakeClock
		client *upiclient.Client
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		clock = clockwork.NewFakeClock()
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
		if server != nil {
			server.Close()
			server = nil
		}
	})

	newClient := func(maxAttempts int, httpClient *http.Client) *upiclient.Client {
		baseURL := "http://sandbox.invalid/v1"
		if server != nil {
			baseURL = server.URL + "/v1"
		}
		return upiclient.NewClient(upiclient.Config{
			BaseURL:      baseURL,
			MaxAttempts:  maxAttempts,
			PollInterval: interval,
			HTTPClient:   httpClient,
		}, clock, testLogger)
	}

	startPoll := func(pollCtx context.Context) <-chan pollOutcome {
		done := make(chan pollOutcome, 1)
		go func() {
			result, err := client.PollStatus(pollCtx, "pay_abc", upiclient.PollOptions{})
			done <- pollOutcome{result, err}
		}()
		return done
	}

	// advance releases n poll waits, one interval each
	advance := func(n int) {
		for i := 0; i < n; i++ {
			Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())
			clock.Advance(interval)
		}
	}

	It("should return as soon as the payment is captured", func() {
		// Given
		server = newScriptedServer(
			scriptedResponse{http.StatusOK, createdJSON},
			scriptedResponse{http.StatusOK, createdJSON},
			scriptedResponse{http.StatusOK, capturedJSON},
		)
		client = newClient(30, nil)

		// When
		done := startPoll(ctx)
		advance(2)

		// Then
		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(outcome.err).NotTo(HaveOccurred())
		Expect(outcome.result.Success).To(BeTrue())
		Expect(outcome.result.Attempts).To(Equal(3))
		Expect(outcome.result.Payment.CapturedAt).NotTo(BeNil())
		Expect(server.calls()).To(Equal(3))
	})

	It("should report a failed payment as an unsuccessful result", func() {
		server = newScriptedServer(scriptedResponse{http.StatusOK, failedJSON})
		client = newClient(30, nil)

		var outcome pollOutcome
		Eventually(startPoll(ctx)).Should(Receive(&outcome))

		Expect(outcome.err).NotTo(HaveOccurred())
		Expect(outcome.result.Success).To(BeFalse())
		Expect(outcome.result.Attempts).To(Equal(1))
		Expect(*outcome.result.Payment.ErrorCode).To(Equal("payment_failed"))
	})

	It("should time out after exactly MaxAttempts queries", func() {
		server = newScriptedServer(scriptedResponse{http.StatusOK, createdJSON})
		client = newClient(3, nil)

		done := startPoll(ctx)
		advance(2)

		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(outcome.result).To(BeNil())
		Expect(errors.Is(outcome.err, internal.ErrPollTimeout)).To(BeTrue())
		Expect(outcome.err.Error()).To(Equal("Payment status check timed out"))
		Consistently(server.calls, "50ms").Should(Equal(3))
	})

	It("should retry server errors and then succeed", func() {
		server = newScriptedServer(
			scriptedResponse{http.StatusServiceUnavailable, `{"error":"busy"}`},
			scriptedResponse{http.StatusOK, createdJSON},
			scriptedResponse{http.StatusOK, capturedJSON},
		)
		client = newClient(5, nil)

		done := startPoll(ctx)
		advance(2)

		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(outcome.err).NotTo(HaveOccurred())
		Expect(outcome.result.Success).To(BeTrue())
		Expect(outcome.result.Attempts).To(Equal(3))
	})

	It("should surface the transport error when every attempt fails", func() {
		transport := &failingTransport{}
		client = newClient(3, &http.Client{Transport: transport})

		done := startPoll(ctx)
		advance(2)

		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(internal.IsType(outcome.err, internal.ErrorTypeTransport)).To(BeTrue())
		Expect(errors.Is(outcome.err, internal.ErrPollTimeout)).To(BeFalse())
		Expect(transport.calls.Load()).To(Equal(int32(3)))
	})

	It("should time out when only earlier attempts hit server errors", func() {
		server = newScriptedServer(
			scriptedResponse{http.StatusInternalServerError, `{"error":"boom"}`},
			scriptedResponse{http.StatusOK, createdJSON},
		)
		client = newClient(2, nil)

		done := startPoll(ctx)
		advance(1)

		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(errors.Is(outcome.err, internal.ErrPollTimeout)).To(BeTrue())
	})

	It("should stop immediately on a 404", func() {
		server = newScriptedServer(scriptedResponse{http.StatusNotFound, `{"error":"Payment not found"}`})
		client = newClient(30, nil)

		var outcome pollOutcome
		Eventually(startPoll(ctx)).Should(Receive(&outcome))

		appErr, ok := internal.IsAppError(outcome.err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodePaymentNotFound))
		Expect(server.calls()).To(Equal(1))
	})

	It("should stop when the context is cancelled during a wait", func() {
		server = newScriptedServer(scriptedResponse{http.StatusOK, createdJSON})
		client = newClient(30, nil)

		pollCtx, pollCancel := context.WithCancel(ctx)
		defer pollCancel()
		done := startPoll(pollCtx)

		Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())
		pollCancel()

		var outcome pollOutcome
		Eventually(done).Should(Receive(&outcome))
		Expect(outcome.err).To(MatchError(context.Canceled))
		Expect(server.calls()).To(Equal(1))
	})
})
