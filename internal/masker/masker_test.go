package masker

import (
	"strings"
	"testing"
)

func TestMask_EmailAndPerson(t *testing.T) {
	m := NewSeeded(1)
	text := "山田 太郎 の連絡先は test@example.com"

	masked, mappings := m.Mask(text)

	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %v", len(mappings), mappings)
	}
	if strings.Contains(masked, "山田 太郎") {
		t.Errorf("person name still present in masked text: %q", masked)
	}
	if strings.Contains(masked, "test@example.com") {
		t.Errorf("email still present in masked text: %q", masked)
	}
	for pseudonym := range mappings {
		if !strings.Contains(masked, pseudonym) {
			t.Errorf("pseudonym %q not present in masked text %q", pseudonym, masked)
		}
	}
	if got := Unmask(masked, mappings); got != text {
		t.Errorf("round trip failed:\ngot  %q\nwant %q", got, text)
	}
}

func TestMask_RoundTrip(t *testing.T) {
	inputs := []string{
		"山田 太郎 の連絡先は test@example.com",
		"株式会社テスト商事の担当は 佐々木 花子 です",
		"電話番号は03-1234-5678、携帯は090-8765-4321です",
		"お問い合わせ: info@company.co.jp または 052-111-2222",
		"取引先のアクメCorp.と打ち合わせ",
		"東京都千代田区丸の内1-9-2。",
	}
	m := NewSeeded(7)
	for _, text := range inputs {
		masked, mappings := m.Mask(text)
		if got := Unmask(masked, mappings); got != text {
			t.Errorf("round trip failed for %q:\ngot  %q", text, got)
		}
	}
}

func TestMask_Company(t *testing.T) {
	m := NewSeeded(2)
	masked, mappings := m.Mask("株式会社テスト商事に発注した")
	if strings.Contains(masked, "株式会社テスト商事") {
		t.Errorf("company still present: %q", masked)
	}
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %v", mappings)
	}
	for _, original := range mappings {
		if original != "株式会社テスト商事" {
			t.Errorf("mapping original = %q", original)
		}
	}
}

func TestMask_CompanySuffixForms(t *testing.T) {
	m := NewSeeded(3)
	for _, text := range []string{"テスト商事株式会社", "AcmeCorp.", "アクメInc.", "テストLtd."} {
		masked, mappings := m.Mask(text)
		if len(mappings) == 0 {
			t.Errorf("no company detected in %q", text)
		}
		if masked == text {
			t.Errorf("text unchanged for %q", text)
		}
	}
}

func TestMask_Phone(t *testing.T) {
	m := NewSeeded(4)
	masked, mappings := m.Mask("電話は03-1234-5678まで")
	if strings.Contains(masked, "03-1234-5678") {
		t.Errorf("phone still present: %q", masked)
	}
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %v", mappings)
	}
}

func TestMask_PersonFullWidthSpace(t *testing.T) {
	m := NewSeeded(5)
	masked, mappings := m.Mask("担当は田中　一郎です")
	if strings.Contains(masked, "田中　一郎") {
		t.Errorf("person still present: %q", masked)
	}
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %v", mappings)
	}
}

func TestMask_Address(t *testing.T) {
	m := NewSeeded(6)
	text := "本社は東京都千代田区丸の内1-9-2。"
	masked, mappings := m.Mask(text)
	if strings.Contains(masked, "千代田区") {
		t.Errorf("address still present: %q", masked)
	}
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %v", mappings)
	}
	if got := Unmask(masked, mappings); got != text {
		t.Errorf("round trip failed: %q", got)
	}
}

func TestMask_RepeatedValueSingleMapping(t *testing.T) {
	m := NewSeeded(8)
	text := "test@example.com に送信。再送先も test@example.com"
	masked, mappings := m.Mask(text)
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping for repeated value, got %v", mappings)
	}
	if strings.Contains(masked, "test@example.com") {
		t.Errorf("email still present: %q", masked)
	}
	var pseudonym string
	for p := range mappings {
		pseudonym = p
	}
	if strings.Count(masked, pseudonym) != 2 {
		t.Errorf("expected pseudonym at both occurrences, masked = %q", masked)
	}
	if got := Unmask(masked, mappings); got != text {
		t.Errorf("round trip failed: %q", got)
	}
}

func TestMask_DistinctValuesDistinctPseudonyms(t *testing.T) {
	m := NewSeeded(9)
	_, mappings := m.Mask("a@example.com と b@example.com に連絡")
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %v", mappings)
	}
	seen := map[string]bool{}
	for pseudonym := range mappings {
		if seen[pseudonym] {
			t.Errorf("duplicate pseudonym %q", pseudonym)
		}
		seen[pseudonym] = true
	}
}

func TestMask_NoPII(t *testing.T) {
	m := NewSeeded(10)
	text := "The quick brown fox jumps over the lazy dog"
	masked, mappings := m.Mask(text)
	if masked != text {
		t.Errorf("text without PII was modified: %q", masked)
	}
	if len(mappings) != 0 {
		t.Errorf("expected empty mappings, got %v", mappings)
	}
}

func TestMask_Empty(t *testing.T) {
	m := NewSeeded(11)
	masked, mappings := m.Mask("")
	if masked != "" || len(mappings) != 0 {
		t.Errorf("empty input produced %q, %v", masked, mappings)
	}
}

func TestMask_FreshPseudonymsPerCall(t *testing.T) {
	m := NewSeeded(12)
	text := "連絡先は contact@example.com"

	masked1, mappings1 := m.Mask(text)
	masked2, mappings2 := m.Mask(text)

	if len(mappings1) != len(mappings2) {
		t.Fatalf("mapping counts differ: %d vs %d", len(mappings1), len(mappings2))
	}
	if masked1 == masked2 {
		t.Errorf("two calls produced identical pseudonyms: %q", masked1)
	}
}

func TestMask_SameSeedSameOutput(t *testing.T) {
	text := "山田 太郎 (yamada@example.com, 090-1111-2222)"
	masked1, _ := NewSeeded(42).Mask(text)
	masked2, _ := NewSeeded(42).Mask(text)
	if masked1 != masked2 {
		t.Errorf("same seed produced different output:\n%q\n%q", masked1, masked2)
	}
}

func TestUnmask_EmptyMappings(t *testing.T) {
	if got := Unmask("untouched", nil); got != "untouched" {
		t.Errorf("got %q", got)
	}
}

func TestFaker_AddressPoolCycles(t *testing.T) {
	f := newFaker(1)
	first := f.address()
	for i := 0; i < len(addressPool)-1; i++ {
		f.address()
	}
	if again := f.address(); again != first {
		t.Errorf("pool did not cycle: first %q, after full cycle %q", first, again)
	}
}
