// Package sanitizer strips dangerous shell, SQL, and script payloads from
// model output before it reaches the client. Detection is regex-based and
// stateless; every match is replaced with a fixed redaction notice.
package sanitizer

import "regexp"

// RedactedNotice replaces every dangerous match. It matches none of the
// category patterns itself, so sanitizing already-sanitized text is a no-op.
const RedactedNotice = "[⚠ 安全上の理由により、危険なコマンドを除去しました]"

// category pairs a compiled pattern with its label. Labels appear verbatim
// in the removed-items list and in audit logs.
type category struct {
	re    *regexp.Regexp
	label string
}

var categories = []category{
	{
		regexp.MustCompile(`(?i)(?:rm\s+-[rf]+\s+/|mkfs\b|dd\s+if=|>\s*/dev/sd|fork\s*bomb|:\(\)\s*\{|chmod\s+-R\s+777\s+/|shutdown\s|reboot\s|init\s+0|kill\s+-9\s+-1)`),
		"破壊的シェルコマンド",
	},
	{
		regexp.MustCompile(`(?i)\b(?:DROP\s+(?:TABLE|DATABASE|SCHEMA|INDEX)\b|TRUNCATE\s+TABLE\b|DELETE\s+FROM\s+\S+\s*(?:;|$)|ALTER\s+TABLE\s+\S+\s+DROP\b|UPDATE\s+\S+\s+SET\s+.*WHERE\s+1\s*=\s*1)`),
		"破壊的SQLコマンド",
	},
	{
		regexp.MustCompile(`(?i)<script[\s>]|javascript\s*:|on(?:load|error|click)\s*=|eval\s*\(|document\.(?:cookie|write)|window\.(?:location|open)`),
		"スクリプトインジェクション",
	},
	{
		regexp.MustCompile(`(?i)(?:nc\s+-[elp]+|ncat\s+-[elp]+|bash\s+-i\s+>&|/dev/tcp/|reverse.?shell|bind.?shell|msfvenom|metasploit)`),
		"ネットワーク攻撃コマンド",
	},
	{
		regexp.MustCompile(`(?i)(?:sudo\s+su\b|passwd\s+root|chmod\s+[u+]*s\b|setuid|/etc/shadow|/etc/passwd\s*>>)`),
		"権限昇格コマンド",
	},
}

// Sanitize replaces every dangerous command in text with RedactedNotice and
// returns the cleaned text plus a "<label>: <match>" entry per removal.
// Categories are applied in a fixed order; each scans the text as left by
// the previous one.
func Sanitize(text string) (string, []string) {
	sanitized := text
	var removed []string

	for _, c := range categories {
		for _, match := range c.re.FindAllString(sanitized, -1) {
			removed = append(removed, c.label+": "+match)
		}
		sanitized = c.re.ReplaceAllString(sanitized, RedactedNotice)
	}

	return sanitized, removed
}
