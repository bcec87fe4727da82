package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal"
)

var _ = Describe("AppError", func() {
	It("should match sentinels through wrapping and copies", func() {
		err := fmt.Errorf("lookup: %w", internal.ErrOrderNotFound.WithDetails("order_x"))

		Expect(errors.Is(err, internal.ErrOrderNotFound)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrPaymentNotFound)).To(BeFalse())
		Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeTrue())
	})

	It("should not modify the sentinel when adding details or a cause", func() {
		withCause := internal.ErrPollTimeout.WithCause(errors.New("deadline"))

		Expect(internal.ErrPollTimeout.Cause).To(BeNil())
		Expect(withCause.Error()).To(Equal("Payment status check timed out: deadline"))
		Expect(errors.Unwrap(withCause)).To(MatchError("deadline"))
	})

	It("should report the first field message for validation errors", func() {
		err := internal.NewValidationFieldError("vpa", "vpa is required", internal.ErrCodeMissingFields)

		Expect(err.Error()).To(Equal("vpa is required"))
		Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
	})

	DescribeTable("IsRetryable",
		func(err error, retryable bool) {
			Expect(internal.IsRetryable(err)).To(Equal(retryable))
		},
		Entry("transport failure", internal.NewTransportError("network error", errors.New("refused")), true),
		Entry("5xx answer", internal.NewServerError("Bad Gateway", http.StatusBadGateway), true),
		Entry("500 answer", internal.NewServerError("Internal server error", http.StatusInternalServerError), true),
		Entry("not found", internal.ErrPaymentNotFound, false),
		Entry("validation", internal.ErrInvalidAmount, false),
		Entry("timeout", internal.ErrPollTimeout, false),
		Entry("plain error", errors.New("boom"), false),
	)

	It("should serialize without the status code or cause", func() {
		raw, err := json.Marshal(internal.ErrInvalidAmount.WithCause(errors.New("hidden")))
		Expect(err).NotTo(HaveOccurred())

		var body map[string]interface{}
		Expect(json.Unmarshal(raw, &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("type", "VALIDATION_ERROR"))
		Expect(body).To(HaveKeyWithValue("code", "INVALID_AMOUNT"))
		Expect(body).To(HaveKeyWithValue("message", "Invalid amount"))
		Expect(body).NotTo(HaveKey("details"))
		Expect(body).NotTo(HaveKey("cause"))
	})
})
