package listing

import (
	"github.com/jmylchreest/propharvest/internal/dom"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// Selectors locates each field on a listing page. The defaults match
// merrjep.al.
type Selectors struct {
	Title       string `mapstructure:"title" yaml:"title" validate:"required"`
	TitleAttr   string `mapstructure:"title_attr" yaml:"title_attr" validate:"required"`
	Description string `mapstructure:"description" yaml:"description" validate:"required"`
	Address     string `mapstructure:"address" yaml:"address" validate:"required"`
	Price       string `mapstructure:"price" yaml:"price" validate:"required"`

	// Characteristic items are repeated label/value pairs.
	TagItem  string `mapstructure:"tag_item" yaml:"tag_item" validate:"required"`
	TagLabel string `mapstructure:"tag_label" yaml:"tag_label" validate:"required"`
	TagValue string `mapstructure:"tag_value" yaml:"tag_value" validate:"required"`

	AddressLabel string `mapstructure:"address_label" yaml:"address_label" validate:"required"`

	Breadcrumb        string `mapstructure:"breadcrumb" yaml:"breadcrumb" validate:"required"`
	PropertyTypeIndex int    `mapstructure:"property_type_index" yaml:"property_type_index" validate:"gte=0"`

	TransactionTypeLabel string   `mapstructure:"transaction_type_label" yaml:"transaction_type_label" validate:"required"`
	AreaLabels           []string `mapstructure:"area_labels" yaml:"area_labels" validate:"required,min=1,dive,required"`
}

// DefaultSelectors returns the selectors for merrjep.al listing pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:                `meta[property="og:title"]`,
		TitleAttr:            "content",
		Description:          "div.description-area span",
		Address:              "span.display-ad-address",
		Price:                "bdi.new-price",
		TagItem:              "div.tags-area a.tag-item",
		TagLabel:             "span",
		TagValue:             "bdi",
		AddressLabel:         "Adresa/Rruga:",
		Breadcrumb:           "ul.breadcrumbs li",
		PropertyTypeIndex:    3,
		TransactionTypeLabel: "Lloji i njoftimit:",
		// The site sometimes serves the label double-encoded.
		AreaLabels: []string{"Sipërfaqe:", "SipÃ«rfaqe:"},
	}
}

// Schema holds the field rules for one site layout.
type Schema struct {
	sel   Selectors
	rules []FieldRule
}

// NewSchema builds the field rules for sel.
func NewSchema(sel Selectors) *Schema {
	return &Schema{
		sel: sel,
		rules: []FieldRule{
			{Field: "Name", Strategies: []Strategy{
				SelectorAttr{Selector: sel.Title, Attr: sel.TitleAttr},
			}},
			{Field: "Description", Strategies: []Strategy{
				SelectorText{Selector: sel.Description},
			}},
			{Field: "Address", Strategies: []Strategy{
				SelectorText{Selector: sel.Address},
				TaggedValue{Items: sel.TagItem, Label: sel.TagLabel, Value: sel.TagValue, Marker: sel.AddressLabel},
			}},
			{Field: "Price", Strategies: []Strategy{
				SelectorText{Selector: sel.Price},
			}},
			{Field: "Area", Strategies: []Strategy{
				CharacteristicLookup{Labels: sel.AreaLabels},
			}},
			{Field: "PropertyType", Strategies: []Strategy{
				NthText{Selector: sel.Breadcrumb, Index: sel.PropertyTypeIndex},
			}},
			{Field: "TransactionType", Strategies: []Strategy{
				CharacteristicLookup{Labels: []string{sel.TransactionTypeLabel}},
			}},
		},
	}
}

// Characteristics scrapes every label/value item on the page. Items
// missing either part are skipped.
func (s *Schema) Characteristics(doc *dom.Document) *Characteristics {
	c := NewCharacteristics()
	doc.Each(s.sel.TagItem, func(el dom.Element) {
		label, ok := el.ChildText(s.sel.TagLabel)
		if !ok {
			return
		}
		value, ok := el.ChildText(s.sel.TagValue)
		if !ok {
			return
		}
		c.Set(label, value)
	})
	return c
}

// Extract builds a record from doc. It reads nothing but doc, so the same
// page always yields the same record. Coordinates are left as sentinels.
func (s *Schema) Extract(doc *dom.Document, url string) Record {
	chars := s.Characteristics(doc)
	in := Input{Doc: doc, Characteristics: chars}

	rec := Record{
		URL:             url,
		Characteristics: chars.Flatten(),
		Latitude:        Sentinel,
		Longitude:       Sentinel,
	}

	for _, rule := range s.rules {
		v, source := rule.evaluate(in)
		if source == "" {
			logger.Debug("field not found", "url", url, "field", rule.Field)
		}
		s.assign(&rec, rule.Field, v)
	}
	return rec
}

func (s *Schema) assign(rec *Record, field, v string) {
	switch field {
	case "Name":
		rec.Name = v
	case "Description":
		rec.Description = v
	case "Address":
		rec.Address = v
	case "Price":
		rec.Price = v
	case "Area":
		rec.Area = v
	case "PropertyType":
		rec.PropertyType = v
	case "TransactionType":
		rec.TransactionType = v
	}
}
