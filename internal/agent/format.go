package agent

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat coerces a client value. Only the exact lowercase names match;
// anything else, including "HTML" or " html ", becomes markdown.
func ParseFormat(v any) Format {
	s, _ := v.(string)
	switch Format(s) {
	case FormatText:
		return FormatText
	case FormatHTML:
		return FormatHTML
	default:
		return FormatMarkdown
	}
}

func (f Format) instruction() string {
	switch f {
	case FormatHTML:
		return "Return a self-contained HTML snippet. Use semantic HTML elements."
	case FormatMarkdown:
		return "Return a markdown formatted answer."
	default:
		return "Return plain text."
	}
}
