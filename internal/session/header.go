// Package session identifies the shopper behind a storefront request.
// REST clients send a Storefront-Session header; MCP clients put the same
// value in the tool call's meta.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// HeaderName carries the shopper identity.
const HeaderName = "Storefront-Session"

// Identity is who a request acts for.
type Identity struct {
	// ShopperID selects the shopper's cart and checkout.
	ShopperID string
	// ClientVersion is the storefront client's API version, if sent.
	ClientVersion string
	// Token is the shopper's bearer token for the marketplace, if sent.
	Token string
}

// ParseHeader reads a Storefront-Session header (RFC 8941 Dictionary).
// Format: sid="shopper-42", v="1.2.0"
//
// sid is required; v is optional. Unknown keys and parameters are ignored.
func ParseHeader(header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, errors.New("empty Storefront-Session header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Identity{}, fmt.Errorf("invalid Storefront-Session header: %w", err)
	}

	sid, err := stringMember(dict, "sid")
	if err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(sid) == "" {
		return Identity{}, errors.New("sid must not be empty")
	}

	id := Identity{ShopperID: sid}
	if _, ok := dict.Get("v"); ok {
		v, err := stringMember(dict, "v")
		if err != nil {
			return Identity{}, err
		}
		id.ClientVersion = v
	}
	return id, nil
}

// FormatHeader encodes id as a Storefront-Session header value. The token
// travels separately in Authorization.
func FormatHeader(id Identity) (string, error) {
	if strings.TrimSpace(id.ShopperID) == "" {
		return "", errors.New("sid must not be empty")
	}
	dict := httpsfv.NewDictionary()
	dict.Add("sid", httpsfv.NewItem(id.ShopperID))
	if id.ClientVersion != "" {
		dict.Add("v", httpsfv.NewItem(id.ClientVersion))
	}
	return httpsfv.Marshal(dict)
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found in Storefront-Session header", key)
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return s, nil
}
