package llm_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeClient struct {
	errs  []error
	calls int
}

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return &llm.Response{Content: `{"schedule":[]}`, FinishReason: "stop"}, nil
}

func (f *fakeClient) Model() string { return "fake-model" }

type sample struct {
	Date  string `json:"date"`
	Items []int  `json:"items"`
}

var _ = Describe("New", func() {
	It("requires an API key", func() {
		_, err := llm.New(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key")))
	})

	It("rejects unknown providers", func() {
		_, err := llm.New(llm.Config{Provider: "llama", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("defaults to OpenAI with a default model", func() {
		c, err := llm.New(llm.Config{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Model()).To(Equal("gpt-4o-mini"))
	})

	It("keeps a configured model", func() {
		c, err := llm.New(llm.Config{Provider: "OpenAI", APIKey: "k", Model: "gpt-4.1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Model()).To(Equal("gpt-4.1"))
	})
})

var _ = Describe("GenerateSchema", func() {
	It("reflects an inline object schema", func() {
		schema := llm.GenerateSchema[sample]()
		Expect(schema).NotTo(BeNil())
		Expect(fmt.Sprintf("%v", schema)).NotTo(BeEmpty())
	})
})

var _ = Describe("IsRetryable", func() {
	DescribeTable("classifies errors",
		func(err error, expected bool) {
			Expect(llm.IsRetryable(err)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("context canceled", context.Canceled, false),
		Entry("wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false),
		Entry("rate limited", &openai.Error{StatusCode: 429}, true),
		Entry("server error", &openai.Error{StatusCode: 503}, true),
		Entry("bad request", &openai.Error{StatusCode: 400}, false),
		Entry("unauthorized", &openai.Error{StatusCode: 401}, false),
		Entry("grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true),
		Entry("grpc unavailable", status.Error(codes.Unavailable, "down"), true),
		Entry("grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), false),
		Entry("network error", errors.New("connection reset by peer"), true),
	)
})

var _ = Describe("WithRetry", func() {
	It("returns the client unchanged when retries are disabled", func() {
		f := &fakeClient{}
		Expect(llm.WithRetry(f, 0, time.Millisecond)).To(BeIdenticalTo(f))
	})

	It("retries retryable failures until success", func() {
		f := &fakeClient{errs: []error{errors.New("timeout"), errors.New("reset")}}
		c := llm.WithRetry(f, 2, time.Millisecond)

		resp, err := c.Complete(context.Background(), llm.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content).To(ContainSubstring("schedule"))
		Expect(f.calls).To(Equal(3))
		Expect(c.Model()).To(Equal("fake-model"))
	})

	It("gives up after the configured attempts", func() {
		f := &fakeClient{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
		c := llm.WithRetry(f, 2, time.Millisecond)

		_, err := c.Complete(context.Background(), llm.Request{})
		Expect(err).To(MatchError("c"))
		Expect(f.calls).To(Equal(3))
	})

	It("does not retry permanent failures", func() {
		f := &fakeClient{errs: []error{status.Error(codes.PermissionDenied, "no")}}
		c := llm.WithRetry(f, 3, time.Millisecond)

		_, err := c.Complete(context.Background(), llm.Request{})
		Expect(err).To(HaveOccurred())
		Expect(f.calls).To(Equal(1))
	})

	It("stops waiting when the context is cancelled", func() {
		f := &fakeClient{errs: []error{errors.New("a"), errors.New("b")}}
		c := llm.WithRetry(f, 1, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := c.Complete(ctx, llm.Request{})
		Expect(err).To(MatchError(context.Canceled))
		Expect(f.calls).To(Equal(1))
	})
})
