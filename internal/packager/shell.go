package packager

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/leafac/caxa/internal/archive"
	"github.com/leafac/caxa/internal/descriptor"
	"github.com/leafac/caxa/internal/launch"
)

// shellHeader is the self-extracting script placed before the archive. It
// runs the same probe/lock/extract loop as the compiled stub, using mkdir as
// the lock primitive.
var shellHeader = template.Must(template.New("header").Delims("<%", "%>").Parse(`#!/usr/bin/env sh
# Packaged by caxa (https://github.com/leafac/caxa)
caxa_payload_line=` + descriptor.LineCountPlaceholder + `
set -e

caxa_root="${TMPDIR:-/tmp}"
caxa_root="${caxa_root%/}/caxa"
<%- if .UserScoped %>
caxa_root="$caxa_root/$(id -un | tr '\\/' '__')"
<%- end %>
caxa_identifier=<% .Identifier %>
caxa_attempt=0

while :; do
  caxa_application="$caxa_root/applications/$caxa_identifier/$caxa_attempt"
  caxa_lock="$caxa_root/locks/$caxa_identifier/$caxa_attempt"

  if [ -d "$caxa_application" ]; then
    if [ -d "$caxa_lock" ]; then
      caxa_attempt=$((caxa_attempt + 1))
      continue
    fi
    break
  fi

  mkdir -p "$(dirname "$caxa_lock")"
  if ! mkdir "$caxa_lock" 2>/dev/null; then
    caxa_attempt=$((caxa_attempt + 1))
    continue
  fi
  if [ -d "$caxa_application" ]; then
    rmdir "$caxa_lock"
    break
  fi
<%- if .Message %>
  printf '%s\n' <% .Message %> >&2
<%- end %>
  mkdir -p "$caxa_lock/payload"
  tail -n+"$caxa_payload_line" "$0" | tar -xzf - -C "$caxa_lock/payload"
  mkdir -p "$(dirname "$caxa_application")"
  mv "$caxa_lock/payload" "$caxa_application"
  rmdir "$caxa_lock"
  break
done

CAXA=true
export CAXA
if [ -d "$caxa_application/node_modules/.bin" ]; then
  PATH="$caxa_application/node_modules/.bin:$PATH"
  export PATH
fi
exec <% .Command %> "$@"
`))

type shellHeaderData struct {
	Identifier string
	Message    string
	Command    string
	UserScoped bool
}

// buildShell writes the rendered header followed directly by the archive.
// There is no JSON trailer: trailing bytes would make tar reject the
// stream.
func buildShell(ctx context.Context, b *build) error {
	header, err := renderShellHeader(b)
	if err != nil {
		return err
	}
	return writeFileAtomic(b.output, 0o755, func(w io.Writer) error {
		if _, err := io.WriteString(w, header); err != nil {
			return fmt.Errorf("writing shell header: %w", err)
		}
		sum, err := archive.Write(ctx, w, b.buildDir)
		if err != nil {
			return err
		}
		b.summary = sum
		return nil
	})
}

func renderShellHeader(b *build) (string, error) {
	data := shellHeaderData{
		Identifier: shellQuote(b.identifier),
		Command:    shellCommand(b.command, `"$caxa_application"`),
		UserScoped: b.opts.UserScoped,
	}
	if b.opts.UncompressionMessage != "" {
		data.Message = shellQuote(b.opts.UncompressionMessage)
	}
	var sb strings.Builder
	if err := shellHeader.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering shell header: %w", err)
	}
	return descriptor.RenderSelfCounting(sb.String())
}

// shellCommand quotes each argument of command for sh, substituting every
// placeholder with dirExpr (an already-quoted shell expression).
func shellCommand(command []string, dirExpr string) string {
	words := make([]string, 0, len(command))
	for _, arg := range command {
		parts := launch.Placeholder.Split(arg, -1)
		var word strings.Builder
		for i, part := range parts {
			if i > 0 {
				word.WriteString(dirExpr)
			}
			if part != "" {
				word.WriteString(shellQuote(part))
			}
		}
		if word.Len() == 0 {
			word.WriteString("''")
		}
		words = append(words, word.String())
	}
	return strings.Join(words, " ")
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
