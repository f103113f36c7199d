package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/vemonet/curies/errors"
)

// Format identifies a SPARQL result serialization by its media type.
type Format string

// Supported result serializations, in negotiation priority order.
const (
	FormatJSON Format = "application/sparql-results+json"
	FormatXML  Format = "application/sparql-results+xml"
	FormatCSV  Format = "text/csv"
	FormatTSV  Format = "text/tab-separated-values"
)

// Formats is the explicit ordered table of supported serializations.
// Negotiation walks it in order: first exact match, else the first entry
// compatible with a requested wildcard.
var Formats = []Format{FormatJSON, FormatXML, FormatCSV, FormatTSV}

// ContentType returns the media type to declare on a response
func (f Format) ContentType() string {
	return string(f)
}

// jsonResults is the SPARQL results JSON document shape
type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
}

// sparqlResultsNS is the namespace of the SPARQL results XML format
const sparqlResultsNS = "http://www.w3.org/2005/sparql-results#"

// xmlDocument is the SPARQL results XML document shape
type xmlDocument struct {
	XMLName   xml.Name      `xml:"sparql"`
	Namespace string        `xml:"xmlns,attr"`
	Head      xmlHead       `xml:"head"`
	Results   xmlResultList `xml:"results"`
}

type xmlHead struct {
	Variables []xmlVariable `xml:"variable"`
}

type xmlVariable struct {
	Name string `xml:"name,attr"`
}

type xmlResultList struct {
	Results []xmlResult `xml:"result"`
}

type xmlResult struct {
	Bindings []xmlBinding `xml:"binding"`
}

type xmlBinding struct {
	Name    string  `xml:"name,attr"`
	URI     *string `xml:"uri"`
	Literal *string `xml:"literal"`
}

// Serialize renders a result into the given wire format.
func Serialize(r *Result, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return serializeJSON(r)
	case FormatXML:
		return serializeXML(r)
	case FormatCSV:
		return serializeSV(r, ',')
	case FormatTSV:
		return serializeSV(r, '\t')
	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownFormat, "results", "Serialize",
			fmt.Sprintf("format %q", format))
	}
}

func serializeJSON(r *Result) ([]byte, error) {
	doc := jsonResults{}
	doc.Head.Vars = r.Vars
	doc.Results.Bindings = make([]map[string]Term, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		doc.Results.Bindings = append(doc.Results.Bindings, b)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "results", "Serialize", "JSON encoding")
	}
	return data, nil
}

func serializeXML(r *Result) ([]byte, error) {
	doc := xmlDocument{Namespace: sparqlResultsNS}
	for _, v := range r.Vars {
		doc.Head.Variables = append(doc.Head.Variables, xmlVariable{Name: v})
	}
	for _, b := range r.Bindings {
		row := xmlResult{}
		// emit bindings in declared variable order for stable output
		for _, v := range r.Vars {
			term, ok := b[v]
			if !ok {
				continue
			}
			xb := xmlBinding{Name: v}
			value := term.Value
			if term.Type == TermURI {
				xb.URI = &value
			} else {
				xb.Literal = &value
			}
			row.Bindings = append(row.Bindings, xb)
		}
		doc.Results.Results = append(doc.Results.Results, row)
	}

	data, err := xml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "results", "Serialize", "XML encoding")
	}
	return append([]byte(xml.Header), data...), nil
}

// serializeSV renders the CSV/TSV shape: a header row of variable names and
// one row per binding with plain term text.
func serializeSV(r *Result, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma

	if err := w.Write(r.Vars); err != nil {
		return nil, errors.Wrap(err, "results", "Serialize", "header row")
	}
	for _, b := range r.Bindings {
		row := make([]string, len(r.Vars))
		for i, v := range r.Vars {
			row[i] = b[v].Value
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrap(err, "results", "Serialize", "binding row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "results", "Serialize", "flush")
	}
	return buf.Bytes(), nil
}
