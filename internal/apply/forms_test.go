package apply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"applyflow-engine/internal/browser"
)

func field(context string) browser.Field {
	return browser.Field{El: fakeEl(context), Context: context}
}

func TestFillFieldsGenericAnswers(t *testing.T) {
	page := newFakePage(screen{fields: []browser.Field{
		field("full name"),
		field("phone number"),
		field("years of experience"),
		field("favorite color"),
	}})
	m := &Machine{Answers: map[string]string{
		"name":                "Jane Doe",
		"phone":               "555-0100",
		"years of experience": "5",
	}}

	m.fillFields(context.Background(), page, Content{})

	assert.Equal(t, "Jane Doe", page.filled[fakeEl("full name")])
	assert.Equal(t, "555-0100", page.filled[fakeEl("phone number")])
	assert.Equal(t, "5", page.filled[fakeEl("years of experience")])
	assert.NotContains(t, page.filled, fakeEl("favorite color"))
}

func TestFillFieldsAIContentWinsOverGeneric(t *testing.T) {
	page := newFakePage(screen{fields: []browser.Field{
		field("cover letter"),
		field("professional summary"),
	}})
	m := &Machine{Answers: map[string]string{
		"cover letter": "generic letter",
		"summary":      "generic summary",
	}}
	content := Content{CoverLetter: "tailored letter", Summary: "tailored summary"}

	m.fillFields(context.Background(), page, content)

	assert.Equal(t, "tailored letter", page.filled[fakeEl("cover letter")])
	assert.Equal(t, "tailored summary", page.filled[fakeEl("professional summary")])
}

func TestFillFieldsAIContentUsedOnce(t *testing.T) {
	page := newFakePage(screen{fields: []browser.Field{
		field("cover letter"),
		field("cover letter (optional duplicate)"),
	}})
	m := &Machine{}
	content := Content{CoverLetter: "tailored letter"}

	m.fillFields(context.Background(), page, content)

	assert.Equal(t, "tailored letter", page.filled[fakeEl("cover letter")])
	assert.NotContains(t, page.filled, fakeEl("cover letter (optional duplicate)"))
}

func TestFillFieldsSkipsContextlessControls(t *testing.T) {
	page := newFakePage(screen{fields: []browser.Field{
		field(""),
		field("   "),
	}})
	m := &Machine{Answers: map[string]string{"": "never"}}

	m.fillFields(context.Background(), page, Content{})

	assert.Empty(t, page.filled)
}
