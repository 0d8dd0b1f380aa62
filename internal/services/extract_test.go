package services

import (
	"strings"
	"testing"
)

func TestExtractCommand_NoMarker(t *testing.T) {
	in := "Отлично! Какой у вас уровень английского?"
	payload, cleaned, found := extractCommand(in)
	if found {
		t.Fatalf("found=true for reply without marker, payload=%q", payload)
	}
	if cleaned != in {
		t.Fatalf("cleaned reply changed: %q", cleaned)
	}
}

func TestExtractCommand_PayloadWithCommasAndColons(t *testing.T) {
	in := `Записываю вас! REGISTER_CLIENT{"name":"Анна Петрова","phone":"+7 912 555-12-12","email":"","age":"25","level":"B1","goals":"работа, переезд: Лондон","experience":"школа","program":"business"}`
	payload, cleaned, found := extractCommand(in)
	if !found {
		t.Fatalf("marker not found")
	}
	if cleaned != "Записываю вас!" {
		t.Fatalf("cleaned = %q", cleaned)
	}

	p, err := parseCommand(payload)
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if p.Goals != "работа, переезд: Лондон" {
		t.Fatalf("comma/colon value corrupted: %q", p.Goals)
	}
	if p.Name != "Анна Петрова" || p.Program != "business" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if missing := p.missingFields(); len(missing) != 0 {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
}

func TestExtractCommand_EscapedQuotesAndNestedBraces(t *testing.T) {
	in := `Готово. REGISTER_CLIENT{"name":"Иван \"Ваня\" Иванов","phone":"79990001122","email":"","age":"30","level":"A2","goals":"цель {или две}","experience":"нет","program":"general"} До связи!`
	payload, cleaned, found := extractCommand(in)
	if !found {
		t.Fatalf("marker not found")
	}
	if !strings.Contains(cleaned, "Готово.") || !strings.Contains(cleaned, "До связи!") {
		t.Fatalf("text around the block lost: %q", cleaned)
	}
	if strings.Contains(cleaned, "REGISTER_CLIENT") {
		t.Fatalf("marker leaked into cleaned text: %q", cleaned)
	}

	p, err := parseCommand(payload)
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if p.Name != `Иван "Ваня" Иванов` {
		t.Fatalf("escaped quotes mishandled: %q", p.Name)
	}
	if p.Goals != "цель {или две}" {
		t.Fatalf("braces inside string broke the scan: %q", p.Goals)
	}
}

func TestExtractCommand_BareMarkerIsStripped(t *testing.T) {
	in := "Хорошо. REGISTER_CLIENT и на этом всё."
	payload, cleaned, found := extractCommand(in)
	if found || payload != "" {
		t.Fatalf("bare marker must not count as a command, payload=%q", payload)
	}
	if strings.Contains(cleaned, "REGISTER_CLIENT") {
		t.Fatalf("bare marker left visible: %q", cleaned)
	}
}

func TestExtractCommand_UnterminatedBlockDropsTail(t *testing.T) {
	in := `Секунду. REGISTER_CLIENT{"name":"Анна","phone":"7999`
	payload, cleaned, found := extractCommand(in)
	if found || payload != "" {
		t.Fatalf("unterminated block must not parse, payload=%q", payload)
	}
	if cleaned != "Секунду." {
		t.Fatalf("cleaned = %q", cleaned)
	}
}

func TestParseCommand_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{name: Анна}`},
		{"unknown field", `{"name":"А","surname":"Б"}`},
		{"array", `["name"]`},
	}
	for _, tc := range cases {
		if _, err := parseCommand(tc.payload); err == nil {
			t.Fatalf("%s: expected parse error", tc.name)
		}
	}
}

func TestMissingFields_EmailOptional(t *testing.T) {
	p := &registrationPayload{
		Name: "Анна", Phone: "79991112233",
		Age: "25", Level: "B1",
		Goals: "работа", Experience: "школа", Program: "general",
	}
	if missing := p.missingFields(); len(missing) != 0 {
		t.Fatalf("email must be optional, missing=%v", missing)
	}

	p.Phone = "  "
	p.Goals = ""
	missing := p.missingFields()
	if len(missing) != 2 || missing[0] != "phone" || missing[1] != "goals" {
		t.Fatalf("missing = %v; want [phone goals]", missing)
	}
}
