// Package plist reads the top-level dictionary out of XML property lists,
// enough to pull bundle metadata (identifier, version, executable name) from
// an archive's Info.plist.
package plist

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// ErrBinaryPlist marks Info.plist entries stored in the binary plist format,
// which this parser does not decode.
var ErrBinaryPlist = errors.New("binary plist not supported")

var binaryMagic = []byte("bplist00")

// Dict is the flattened top-level dictionary of a plist. Only scalar values
// are kept; nested dictionaries and arrays are skipped.
type Dict map[string]string

// Parse decodes an XML plist's top-level dict. Binary plists return
// ErrBinaryPlist so callers can degrade instead of failing the whole
// inspection.
func Parse(data []byte) (Dict, error) {
	if bytes.HasPrefix(data, binaryMagic) {
		return nil, ErrBinaryPlist
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("plist parse: %w", err)
	}

	root := doc.SelectElement("plist")
	if root == nil {
		return nil, fmt.Errorf("plist parse: no <plist> element")
	}
	dict := root.SelectElement("dict")
	if dict == nil {
		return nil, fmt.Errorf("plist parse: no top-level <dict>")
	}

	d := make(Dict)
	children := dict.ChildElements()
	for i := 0; i+1 < len(children); i += 2 {
		key, value := children[i], children[i+1]
		if key.Tag != "key" {
			return nil, fmt.Errorf("plist parse: expected <key>, found <%s>", key.Tag)
		}
		switch value.Tag {
		case "string", "integer", "real", "date", "data":
			d[key.Text()] = value.Text()
		case "true", "false":
			d[key.Text()] = value.Tag
		default:
			// dict, array: structure we do not need.
		}
	}
	return d, nil
}
