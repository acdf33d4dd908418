// Package listing turns a rendered property listing page into a Record.
package listing

import (
	"strings"

	"github.com/jmylchreest/propharvest/internal/geo"
)

// Sentinel is the value of any field that could not be extracted.
const Sentinel = geo.Sentinel

// Record is one property listing. Field order is the column order of
// tabular output.
type Record struct {
	URL             string `json:"url" yaml:"url"`
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description" yaml:"description"`
	Address         string `json:"address" yaml:"address"`
	Price           string `json:"price" yaml:"price"`
	Area            string `json:"area" yaml:"area"`
	Characteristics string `json:"characteristics" yaml:"characteristics"`
	PropertyType    string `json:"property_type" yaml:"property_type"`
	TransactionType string `json:"transaction_type" yaml:"transaction_type"`
	Latitude        string `json:"latitude" yaml:"latitude"`
	Longitude       string `json:"longitude" yaml:"longitude"`
}

var columns = []string{
	"URL",
	"Name",
	"Description",
	"Address",
	"Price",
	"Area",
	"Characteristics",
	"PropertyType",
	"TransactionType",
	"Latitude",
	"Longitude",
}

// Columns returns the header row for tabular output.
func (r Record) Columns() []string {
	return append([]string(nil), columns...)
}

// Values returns the record's fields in column order.
func (r Record) Values() []string {
	return []string{
		r.URL,
		r.Name,
		r.Description,
		r.Address,
		r.Price,
		r.Area,
		r.Characteristics,
		r.PropertyType,
		r.TransactionType,
		r.Latitude,
		r.Longitude,
	}
}

// SetCoordinates copies p into the record.
func (r *Record) SetCoordinates(p geo.Pair) {
	r.Latitude = p.Latitude
	r.Longitude = p.Longitude
}

// Characteristics is an insertion-ordered label to value mapping.
type Characteristics struct {
	labels []string
	values map[string]string
}

// NewCharacteristics returns an empty mapping.
func NewCharacteristics() *Characteristics {
	return &Characteristics{values: make(map[string]string)}
}

// Set stores value under label. A repeated label keeps its first position
// and takes the latest value.
func (c *Characteristics) Set(label, value string) {
	if _, ok := c.values[label]; !ok {
		c.labels = append(c.labels, label)
	}
	c.values[label] = value
}

// Get returns the value stored under label.
func (c *Characteristics) Get(label string) (string, bool) {
	v, ok := c.values[label]
	return v, ok
}

// Len returns the number of labels.
func (c *Characteristics) Len() int {
	return len(c.labels)
}

// Flatten renders the mapping as "label: value" pairs joined by ", ".
// Labels usually end in a colon already, which is kept.
func (c *Characteristics) Flatten() string {
	if len(c.labels) == 0 {
		return Sentinel
	}
	var b strings.Builder
	for i, label := range c.labels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(c.values[label])
	}
	return b.String()
}
