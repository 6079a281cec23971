package postgresdb

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// LoggingQueryTracer logs every query start and end through slog.
type LoggingQueryTracer struct {
	logger *slog.Logger
}

func NewLoggingQueryTracer(logger *slog.Logger) *LoggingQueryTracer {
	return &LoggingQueryTracer{logger: logger}
}

var (
	replaceTabs   = regexp.MustCompile(`\t+`)
	replaceSpaces = regexp.MustCompile(`\s+`)
)

// prettyPrintSQL collapses a multi-line query to a single trimmed line.
func prettyPrintSQL(sql string) string {
	pretty := strings.Join(strings.Split(sql, "\n"), " ")
	pretty = replaceTabs.ReplaceAllString(pretty, "")
	pretty = replaceSpaces.ReplaceAllString(pretty, " ")
	return strings.TrimSpace(pretty)
}

func (l *LoggingQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	l.logger.Info("query start",
		slog.String("sql", prettyPrintSQL(data.SQL)),
		slog.Any("args", data.Args),
	)
	return ctx
}

func (l *LoggingQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		l.logger.Error("query end",
			slog.String("error", data.Err.Error()),
			slog.String("command_tag", data.CommandTag.String()),
		)
		return
	}

	l.logger.Info("query end",
		slog.String("command_tag", data.CommandTag.String()),
	)
}
