package wizard

import (
	"errors"
	"fmt"
	"strings"
)

// Token prefixes. The delimiter is shared by category ids, so server and
// language segments are recovered from the right.
const (
	TokenStart   = "create_ticket"
	prefixLang   = "lang_"
	prefixCat    = "cat_"
	prefixServer = "srv_"
	prefixForm   = "ticket_modal_"
	sep          = "_"
)

var (
	// ErrNotWizardToken means the token belongs to some other control.
	ErrNotWizardToken = errors.New("wizard: not a wizard token")
	// ErrMalformedToken means the prefix matched but the payload did not parse.
	ErrMalformedToken = errors.New("wizard: malformed token")
)

// Codec encodes states into tokens and back. It needs the fixed server ids to
// disambiguate form tokens.
type Codec struct {
	servers map[string]bool
}

// NewCodec builds a codec for the given server identifiers.
func NewCodec(serverIDs []string) Codec {
	servers := make(map[string]bool, len(serverIDs))
	for _, id := range serverIDs {
		servers[id] = true
	}
	return Codec{servers: servers}
}

// IsWizardToken reports whether token has one of the wizard prefixes.
func IsWizardToken(token string) bool {
	return token == TokenStart ||
		strings.HasPrefix(token, prefixLang) ||
		strings.HasPrefix(token, prefixCat) ||
		strings.HasPrefix(token, prefixServer) ||
		strings.HasPrefix(token, prefixForm)
}

// Encode renders the token that leads into state s.
func (c Codec) Encode(s State) string {
	switch st := s.(type) {
	case AwaitingLanguage:
		return TokenStart
	case AwaitingCategory:
		return prefixLang + st.Language
	case AwaitingServer:
		return prefixCat + st.Category + sep + st.Language
	case Completed:
		if st.FormSubmitted {
			if st.Server == "" {
				return prefixForm + st.Category + sep + st.Language
			}
			return prefixForm + st.Category + sep + st.Server + sep + st.Language
		}
		return prefixServer + st.Category + sep + st.Server + sep + st.Language
	default:
		panic(fmt.Sprintf("wizard: unknown state %T", s))
	}
}

// Decode parses a token into the state it leads to.
func (c Codec) Decode(token string) (State, error) {
	switch {
	case token == TokenStart:
		return AwaitingLanguage{}, nil

	case strings.HasPrefix(token, prefixLang):
		lang := strings.TrimPrefix(token, prefixLang)
		if lang == "" || strings.Contains(lang, sep) {
			return nil, malformed(token)
		}
		return AwaitingCategory{Language: lang}, nil

	case strings.HasPrefix(token, prefixCat):
		parts := strings.Split(strings.TrimPrefix(token, prefixCat), sep)
		if len(parts) < 2 {
			return nil, malformed(token)
		}
		st := AwaitingServer{
			Language: parts[len(parts)-1],
			Category: strings.Join(parts[:len(parts)-1], sep),
		}
		if st.Language == "" || st.Category == "" {
			return nil, malformed(token)
		}
		return st, nil

	case strings.HasPrefix(token, prefixServer):
		// the server segment is always present here
		parts := strings.Split(strings.TrimPrefix(token, prefixServer), sep)
		if len(parts) < 3 {
			return nil, malformed(token)
		}
		st := Completed{
			Language: parts[len(parts)-1],
			Server:   parts[len(parts)-2],
			Category: strings.Join(parts[:len(parts)-2], sep),
		}
		if st.Language == "" || st.Server == "" || st.Category == "" {
			return nil, malformed(token)
		}
		return st, nil

	case strings.HasPrefix(token, prefixForm):
		return c.decodeForm(token)
	}
	return nil, ErrNotWizardToken
}

// decodeForm applies the terminal rule: the language is the last segment; the
// second-to-last segment is a server only if it is one of the fixed server
// ids, otherwise it belongs to the category. A server-less category whose id
// ends in a server id ("report_pei") therefore decodes with that server split
// off.
func (c Codec) decodeForm(token string) (State, error) {
	parts := strings.Split(strings.TrimPrefix(token, prefixForm), sep)
	if len(parts) < 2 {
		return nil, malformed(token)
	}
	st := Completed{FormSubmitted: true, Language: parts[len(parts)-1]}
	if candidate := parts[len(parts)-2]; len(parts) >= 3 && c.servers[candidate] {
		st.Server = candidate
		st.Category = strings.Join(parts[:len(parts)-2], sep)
	} else {
		st.Category = strings.Join(parts[:len(parts)-1], sep)
	}
	if st.Language == "" || st.Category == "" {
		return nil, malformed(token)
	}
	return st, nil
}

func malformed(token string) error {
	return fmt.Errorf("%w: %q", ErrMalformedToken, token)
}
