// Package catalog holds the static ticket-type table: which ticket types exist, the
// channel category each one lands in, who is pinged and who may see the channel, and
// the form fields a requester fills in.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

//go:embed locales.yaml
var defaultLocales []byte

// DefaultLanguage is used when a language code is unknown.
const DefaultLanguage = "ru"

// FieldStyle selects a single-line or multi-line form input.
type FieldStyle string

const (
	FieldShort     FieldStyle = "SHORT"
	FieldParagraph FieldStyle = "PARAGRAPH"
)

// minParagraphLength is the shortest answer a required paragraph accepts.
const minParagraphLength = 10

// FormField describes one form input of a ticket type.
type FormField struct {
	ID        string     `yaml:"id"`
	Required  bool       `yaml:"required"`
	Style     FieldStyle `yaml:"style"`
	MaxLength int        `yaml:"maxLength"`
}

// MinLength is the minimum answer length the form input asks for. Only
// required paragraphs have one.
func (f FormField) MinLength() int {
	if f.Style == FieldParagraph && f.Required {
		return minParagraphLength
	}
	return 0
}

// TicketType is a static, configuration-defined request category.
type TicketType struct {
	ID          string             `yaml:"id"`
	Category    domain.CategoryKey `yaml:"category"`
	Prefix      string             `yaml:"prefix"`
	Color       int                `yaml:"color"`
	PingRoles   []domain.RoleKey   `yaml:"pingRoles"`
	AccessRoles []domain.RoleKey   `yaml:"accessRoles"`
	Names       map[string]string  `yaml:"names"`
	Fields      []FormField        `yaml:"fields"`
}

// Name returns the localized display name, falling back to the id.
func (t TicketType) Name(lang string) string {
	if n, ok := t.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := t.Names["en"]; ok && n != "" {
		return n
	}
	return t.ID
}

// ChannelPrefix returns the channel-name prefix for tickets of this type.
func (t TicketType) ChannelPrefix() string {
	if t.Prefix == "" {
		return "ticket"
	}
	return t.Prefix
}

// CategoryGroup is a channel category created by setup.
type CategoryGroup struct {
	Key      domain.CategoryKey `yaml:"key"`
	Name     string             `yaml:"name"`
	Position int                `yaml:"position"`
}

// Server is a selectable game-server cluster.
type Server struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Language is a supported interface language.
type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Catalog is the immutable lookup table built from the YAML document.
type Catalog struct {
	Languages   []Language      `yaml:"languages"`
	Servers     []Server        `yaml:"servers"`
	Categories  []CategoryGroup `yaml:"categories"`
	TicketTypes []TicketType    `yaml:"ticketTypes"`

	types   map[string]TicketType
	locales Locales
}

// Locales is the user-facing string table: messages and form-field labels
// keyed by language code.
type Locales struct {
	Messages map[string]map[string]string `yaml:"messages"`
	Fields   map[string]map[string]string `yaml:"fields"`
}

// Default parses the embedded catalog and string table.
func Default() (*Catalog, error) {
	c, err := Parse(defaultCatalog)
	if err != nil {
		return nil, err
	}
	if err := c.LoadLocales(defaultLocales); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDefault is Default for program start-up and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.types = make(map[string]TicketType, len(c.TicketTypes))
	for _, tt := range c.TicketTypes {
		if tt.ID == "" {
			return nil, fmt.Errorf("catalog: ticket type without id")
		}
		if !domain.ValidCategoryKey(string(tt.Category)) {
			return nil, fmt.Errorf("catalog: ticket type %s: unknown category %q", tt.ID, tt.Category)
		}
		if _, dup := c.types[tt.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate ticket type %s", tt.ID)
		}
		c.types[tt.ID] = tt
	}
	sort.SliceStable(c.Categories, func(i, j int) bool {
		return c.Categories[i].Position < c.Categories[j].Position
	})
	return &c, nil
}

// TicketType looks up a ticket type by id.
func (c *Catalog) TicketType(id string) (TicketType, bool) {
	tt, ok := c.types[id]
	return tt, ok
}

// HasServer reports whether id is one of the fixed server identifiers.
func (c *Catalog) HasServer(id string) bool {
	for _, s := range c.Servers {
		if s.ID == id {
			return true
		}
	}
	return false
}

// ServerIDs lists the fixed server identifiers in declaration order.
func (c *Catalog) ServerIDs() []string {
	ids := make([]string, 0, len(c.Servers))
	for _, s := range c.Servers {
		ids = append(ids, s.ID)
	}
	return ids
}

// ServerName returns the display name of a server, or the id itself.
func (c *Catalog) ServerName(id string) string {
	for _, s := range c.Servers {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

// HasLanguage reports whether code is a supported language.
func (c *Catalog) HasLanguage(code string) bool {
	for _, l := range c.Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// LoadLocales replaces the string table. Every language must define the same
// message keys.
func (c *Catalog) LoadLocales(data []byte) error {
	var l Locales
	if err := yaml.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("decode locales: %w", err)
	}
	var (
		refLang string
		ref     map[string]string
	)
	for lang, msgs := range l.Messages {
		if ref == nil {
			refLang, ref = lang, msgs
			continue
		}
		for key := range ref {
			if _, ok := msgs[key]; !ok {
				return fmt.Errorf("locales: %s lacks %q defined by %s", lang, key, refLang)
			}
		}
		for key := range msgs {
			if _, ok := ref[key]; !ok {
				return fmt.Errorf("locales: %s lacks %q defined by %s", refLang, key, lang)
			}
		}
	}
	c.locales = l
	return nil
}

// Lang normalizes a language code to a supported one.
func (c *Catalog) Lang(code string) string {
	if c.HasLanguage(code) {
		return code
	}
	return DefaultLanguage
}

// Text returns the localized message for key with {name} placeholders
// substituted from kv pairs. Unknown keys come back verbatim.
func (c *Catalog) Text(lang, key string, kv ...string) string {
	msg, ok := c.locales.Messages[c.Lang(lang)][key]
	if !ok {
		return key
	}
	if len(kv) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// FieldLabel returns the localized label of a form field, or its id.
func (c *Catalog) FieldLabel(lang, fieldID string) string {
	if label, ok := c.locales.Fields[c.Lang(lang)][fieldID]; ok {
		return label
	}
	return fieldID
}

// LanguageName returns the display name of a language code.
func (c *Catalog) LanguageName(code string) string {
	for _, l := range c.Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}
