package postgres

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var dbTracer = otel.Tracer("ynabmirror.db")

// maxStatementLen caps db.statement; generated upserts run long.
const maxStatementLen = 256

func startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return dbTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlVerb(query)),
		attribute.String("db.statement", redactLiterals(query)),
	))
}

// redactLiterals replaces quoted strings and bare numbers with '?' so no
// budget data ends up in traces. $N placeholders are kept.
func redactLiterals(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	for i := 0; i < len(q); {
		ch := q[i]
		switch {
		case ch == '\'':
			b.WriteString("'?'")
			i = skipQuoted(q, i+1)
		case isDigit(ch) && (i == 0 || !isIdentChar(q[i-1])):
			b.WriteByte('?')
			for i < len(q) && (isDigit(q[i]) || q[i] == '.') {
				i++
			}
		default:
			b.WriteByte(ch)
			i++
		}
	}

	s := b.String()
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}

// skipQuoted returns the index just past the literal starting at i,
// honouring doubled quotes.
func skipQuoted(q string, i int) int {
	for i < len(q) {
		if q[i] != '\'' {
			i++
			continue
		}
		if i+1 < len(q) && q[i+1] == '\'' {
			i += 2
			continue
		}
		return i + 1
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$' || isDigit(c)
}

func sqlVerb(q string) string {
	q = strings.TrimSpace(q)
	if idx := strings.IndexAny(q, " \n\t"); idx > 0 {
		return strings.ToUpper(q[:idx])
	}
	return strings.ToUpper(q)
}
