package models

import (
	"encoding/json"
	"testing"
)

func TestMessageContentDecodesBothShapes(t *testing.T) {
	var plain Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &plain); err != nil {
		t.Fatalf("string content failed: %v", err)
	}
	if plain.Content.IsParts() || plain.Content.Text != "hello" {
		t.Errorf("unexpected plain content: %+v", plain.Content)
	}

	var structured Message
	raw := `{"role":"user","content":[{"type":"text","text":"look"},{"type":"image","image":"data:image/png;base64,AA"}]}`
	if err := json.Unmarshal([]byte(raw), &structured); err != nil {
		t.Fatalf("part array failed: %v", err)
	}
	if !structured.Content.IsParts() {
		t.Fatalf("expected structured content: %+v", structured.Content)
	}
	if structured.Content.TextContent() != "look" {
		t.Errorf("TextContent wrong: %q", structured.Content.TextContent())
	}
	if imgs := structured.Content.Images(); len(imgs) != 1 || imgs[0] != "data:image/png;base64,AA" {
		t.Errorf("Images wrong: %v", imgs)
	}

	var bad Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":42}`), &bad); err == nil {
		t.Error("numeric content should be rejected")
	}
}

func TestMessageContentRoundTrip(t *testing.T) {
	msg := Message{Role: RoleUser, Content: PartsContent(
		ContentPart{Type: PartText, Text: "a"},
		ContentPart{Type: PartImage, Image: "data:x"},
	)}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Content.IsParts() || len(back.Content.Parts) != 2 {
		t.Errorf("parts lost in round trip: %+v", back.Content)
	}
}

func TestFlattenJoinsTextParts(t *testing.T) {
	c := PartsContent(
		ContentPart{Type: PartText, Text: "one"},
		ContentPart{Type: PartImage, Image: "data:x"},
		ContentPart{Type: PartText, Text: "two"},
	)
	if got := c.Flatten(); got != "one\ntwo" {
		t.Errorf("Flatten wrong: %q", got)
	}
}

func TestCredentialValueUnion(t *testing.T) {
	var bare CredentialValue
	if err := json.Unmarshal([]byte(`"sk-test"`), &bare); err != nil {
		t.Fatalf("bare credential failed: %v", err)
	}
	if !bare.Bare || bare.APIKey != "sk-test" {
		t.Errorf("unexpected bare credential: %+v", bare)
	}

	var structured CredentialValue
	raw := `{"apiKey":"az","endpoint":"https://e","apiVersion":"2024-02-01"}`
	if err := json.Unmarshal([]byte(raw), &structured); err != nil {
		t.Fatalf("structured credential failed: %v", err)
	}
	if structured.Bare || structured.Endpoint != "https://e" {
		t.Errorf("unexpected structured credential: %+v", structured)
	}

	// Bare values marshal back to plain strings.
	data, err := json.Marshal(Key("sk-2"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"sk-2"` {
		t.Errorf("bare credential should marshal as a string: %s", data)
	}

	if !(CredentialValue{}).Empty() {
		t.Error("zero credential should be empty")
	}
	if Key("x").Empty() {
		t.Error("keyed credential should not be empty")
	}
}
