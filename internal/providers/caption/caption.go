// Package caption turns detected label names into a one-line landscape
// caption using a hosted language model, with a canned fallback for local runs.
package caption

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyCaption is returned when a model answer holds no usable caption.
var ErrEmptyCaption = errors.New("caption: empty model response")

const (
	staticProviderName  = "static"
	bedrockProviderName = "bedrock"
	openAIProviderName  = "openai"
)

// Options are the inference parameters shared by the model-backed generators.
type Options struct {
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

func DefaultOptions() Options {
	return Options{MaxTokens: 1024, Temperature: 0.7, TopP: 0.9}
}

const systemPrompt = "Eres una aplicacion que recibe etiquetas referentes a imagenes de paisajes naturales y en base a ellas generas una descripcion de la imagen de entre 7 y 12 palabras. Por ejemplo: 'Hermoso cielo despejado cerca del rio', ese tipo de descripciones, nada de parrafos largos ni enciclopedias"

func userPrompt(labels []string) string {
	return fmt.Sprintf("Analiza esta imagen que contiene las siguientes etiquetas detectadas: %s. Proporciona una descripción detallada.", strings.Join(labels, ", "))
}

var (
	thinkBlock     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	quotedFragment = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
)

// extractCaption reduces a model answer to a single caption: reasoning
// blocks are dropped, the first double-quoted fragment wins, otherwise the
// first non-empty line is used.
func extractCaption(text string) (string, error) {
	text = thinkBlock.ReplaceAllString(text, "")
	caption := ""
	if m := quotedFragment.FindStringSubmatch(text); m != nil {
		caption = m[1]
		if caption == "" {
			caption = m[2]
		}
	} else {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				caption = line
				break
			}
		}
	}
	caption = strings.Trim(strings.TrimSpace(caption), `"'“”*`)
	caption = strings.TrimSpace(norm.NFC.String(caption))
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}
