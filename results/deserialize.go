package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/vemonet/curies/errors"
)

// Deserialize parses raw response bytes back into canonical bindings. The
// declared content type picks the parser; when it is empty or unrecognized
// the format is sniffed from the payload. Remote stores are loose with their
// declared types, so common aliases are accepted.
func Deserialize(data []byte, contentType string) (*Result, error) {
	switch normalizeContentType(contentType) {
	case FormatJSON:
		return deserializeJSON(data)
	case FormatXML:
		return deserializeXML(data)
	case FormatCSV:
		return deserializeSV(data, ',')
	case FormatTSV:
		return deserializeSV(data, '\t')
	default:
		return Deserialize(data, string(sniffFormat(data)))
	}
}

// normalizeContentType strips media type parameters and maps aliases onto
// the canonical formats
func normalizeContentType(contentType string) Format {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	switch mediaType {
	case string(FormatJSON), "application/json":
		return FormatJSON
	case string(FormatXML), "application/xml", "text/xml":
		return FormatXML
	case string(FormatCSV):
		return FormatCSV
	case string(FormatTSV), "text/tsv":
		return FormatTSV
	default:
		return ""
	}
}

// sniffFormat guesses the serialization from payload shape
func sniffFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return FormatJSON
	case len(trimmed) > 0 && trimmed[0] == '<':
		return FormatXML
	default:
		header, _, _ := bytes.Cut(trimmed, []byte("\n"))
		if bytes.ContainsRune(header, '\t') {
			return FormatTSV
		}
		return FormatCSV
	}
}

func deserializeJSON(data []byte) (*Result, error) {
	var doc jsonResults
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(errors.ErrDeserializeFailed, "results", "Deserialize",
			fmt.Sprintf("JSON decoding: %v", err))
	}
	result := NewResult(doc.Head.Vars...)
	for _, row := range doc.Results.Bindings {
		binding := make(Binding, len(row))
		for name, term := range row {
			binding[name] = term
		}
		result.Add(binding)
	}
	return result, nil
}

func deserializeXML(data []byte) (*Result, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(errors.ErrDeserializeFailed, "results", "Deserialize",
			fmt.Sprintf("XML decoding: %v", err))
	}
	vars := make([]string, 0, len(doc.Head.Variables))
	for _, v := range doc.Head.Variables {
		vars = append(vars, v.Name)
	}
	result := NewResult(vars...)
	for _, row := range doc.Results.Results {
		binding := make(Binding, len(row.Bindings))
		for _, xb := range row.Bindings {
			switch {
			case xb.URI != nil:
				binding[xb.Name] = URI(*xb.URI)
			case xb.Literal != nil:
				binding[xb.Name] = Literal(*xb.Literal)
			}
		}
		result.Add(binding)
	}
	return result, nil
}

// deserializeSV parses the CSV/TSV shape. Those formats carry no term typing,
// so types are reconstructed by sniffing: absolute URIs become uri terms,
// everything else a plain literal.
func deserializeSV(data []byte, comma rune) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrDeserializeFailed, "results", "Deserialize",
			fmt.Sprintf("CSV decoding: %v", err))
	}
	if len(rows) == 0 {
		return nil, errors.WrapInvalid(errors.ErrDeserializeFailed, "results", "Deserialize",
			"missing header row")
	}

	result := NewResult(rows[0]...)
	for _, row := range rows[1:] {
		binding := make(Binding, len(result.Vars))
		for i, v := range result.Vars {
			if i >= len(row) {
				break
			}
			value := row[i]
			if isAbsoluteURI(value) {
				binding[v] = URI(value)
			} else {
				binding[v] = Literal(value)
			}
		}
		result.Add(binding)
	}
	return result, nil
}

// isAbsoluteURI reports whether a bare string is an absolute URI
func isAbsoluteURI(value string) bool {
	if !strings.Contains(value, "://") && !strings.HasPrefix(value, "urn:") {
		return false
	}
	u, err := url.Parse(value)
	return err == nil && u.IsAbs()
}
