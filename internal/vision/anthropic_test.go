package vision_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tmc/langchaingo/llms"

	"github.com/zombor/invoice-analyzer/internal/vision"
)

type fakeLLM struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeLLM) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

var _ = Describe("Anthropic", func() {
	var (
		llm   *fakeLLM
		model *vision.Anthropic
		img   vision.Image
	)

	BeforeEach(func() {
		llm = &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "respuesta"}}}}
		model = vision.NewAnthropicWithModel(llm)
		img = vision.Image{Data: []byte("png"), MediaType: "image/png"}
	})

	It("sends the prompt with the image and returns the first choice", func() {
		text, err := model.Complete(context.Background(), "analiza", img)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("respuesta"))

		Expect(llm.messages).To(HaveLen(2))
		Expect(llm.messages[0].Role).To(Equal(llms.ChatMessageTypeSystem))
		human := llm.messages[1]
		Expect(human.Role).To(Equal(llms.ChatMessageTypeHuman))
		Expect(human.Parts).To(ContainElement(llms.TextPart("analiza")))
		Expect(human.Parts).To(ContainElement(llms.BinaryPart("image/png", []byte("png"))))
		Expect(llm.opts.MaxTokens).To(Equal(4000))
	})

	It("wraps model errors", func() {
		llm.err = errors.New("overloaded")

		_, err := model.Complete(context.Background(), "analiza", img)
		Expect(err).To(MatchError(ContainSubstring("overloaded")))
	})

	It("fails on an empty response", func() {
		llm.resp = &llms.ContentResponse{}

		_, err := model.Complete(context.Background(), "analiza", img)
		Expect(err).To(HaveOccurred())
	})

	It("requires an api key", func() {
		_, err := vision.NewAnthropic("", "")
		Expect(err).To(HaveOccurred())
	})
})
