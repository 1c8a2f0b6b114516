// MCP transport for the storefront using the official MCP Go SDK.
// Exposes cart operations and checkout status as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/session"
	"storefront-checkout/internal/storefront"
)

// MCPMeta carries what REST clients send as headers.
// - Storefront-Session header → meta["storefront-session"]
// - Authorization bearer token → meta["authorization"]
type MCPMeta struct {
	Session       string `json:"storefront-session" jsonschema:"Storefront-Session dictionary naming the shopper"`
	Authorization string `json:"authorization,omitempty" jsonschema:"bearer token for the marketplace"`
}

// === MCP Tool Input Types ===
// Money crosses MCP as decimal strings.

type GetCartInput struct {
	Meta MCPMeta `json:"meta" jsonschema:"request metadata"`
}

type AddCartItemInput struct {
	Meta        MCPMeta `json:"meta" jsonschema:"request metadata"`
	ProductID   string  `json:"product_id" jsonschema:"product ID"`
	Quantity    int     `json:"quantity" jsonschema:"quantity to add"`
	Size        string  `json:"size,omitempty" jsonschema:"size variant"`
	Color       string  `json:"color,omitempty" jsonschema:"color variant"`
	Name        string  `json:"name,omitempty" jsonschema:"display name"`
	UnitPrice   string  `json:"unit_price,omitempty" jsonschema:"unit price as a decimal string"`
	MaxQuantity int     `json:"max_quantity,omitempty" jsonschema:"stock ceiling, 0 if unknown"`
}

type UpdateCartItemInput struct {
	Meta      MCPMeta `json:"meta" jsonschema:"request metadata"`
	ProductID string  `json:"product_id" jsonschema:"product ID"`
	Size      string  `json:"size,omitempty" jsonschema:"size variant"`
	Color     string  `json:"color,omitempty" jsonschema:"color variant"`
	Quantity  int     `json:"quantity" jsonschema:"new quantity; 0 removes the line"`
}

type RemoveCartItemInput struct {
	Meta      MCPMeta `json:"meta" jsonschema:"request metadata"`
	ProductID string  `json:"product_id" jsonschema:"product ID"`
	Size      string  `json:"size,omitempty" jsonschema:"size variant"`
	Color     string  `json:"color,omitempty" jsonschema:"color variant"`
}

type ApplyCouponInput struct {
	Meta MCPMeta `json:"meta" jsonschema:"request metadata"`
	Code string  `json:"code" jsonschema:"coupon code"`
}

type GetCheckoutInput struct {
	Meta MCPMeta `json:"meta" jsonschema:"request metadata"`
}

// NewMCPServer creates an MCP server with the storefront tools registered.
// Outputs are untyped so decimal amounts render as strings.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-checkout",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront cart and checkout. Every call needs meta.storefront-session " +
				"identifying the shopper.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the shopper's cart with derived totals.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_cart_item",
		Description: "Add a product variant to the cart. Quantities merge with an existing line and are clamped to stock.",
	}, h.mcpAddCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_item",
		Description: "Set the quantity of a cart line. A quantity of 0 removes it.",
	}, h.mcpUpdateCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_cart_item",
		Description: "Remove a cart line. Removing an absent line does nothing.",
	}, h.mcpRemoveCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_coupon",
		Description: "Apply a coupon code. Returns applied=false when the code earns no discount.",
	}, h.mcpApplyCoupon)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_checkout",
		Description: "Get the shopper's active checkout session, including any pending payment verification.",
	}, h.mcpGetCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(ctx context.Context, req *mcp.CallToolRequest, input GetCartInput) (*mcp.CallToolResult, any, error) {
	_, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}
	return nil, s.Cart.Snapshot(), nil
}

func (h *Handler) mcpAddCartItem(ctx context.Context, req *mcp.CallToolRequest, input AddCartItemInput) (*mcp.CallToolResult, any, error) {
	ctx, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	res, err := s.Cart.Add(ctx, model.LineItem{
		ProductID:   input.ProductID,
		Name:        input.Name,
		Size:        input.Size,
		Color:       input.Color,
		Quantity:    input.Quantity,
		UnitPrice:   model.ParseAmount(input.UnitPrice),
		MaxQuantity: input.MaxQuantity,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

func (h *Handler) mcpUpdateCartItem(ctx context.Context, req *mcp.CallToolRequest, input UpdateCartItemInput) (*mcp.CallToolResult, any, error) {
	ctx, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}

	key := model.LineKey{ProductID: input.ProductID, Size: input.Size, Color: input.Color}
	res, err := s.Cart.UpdateQuantity(ctx, key, input.Quantity)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

func (h *Handler) mcpRemoveCartItem(ctx context.Context, req *mcp.CallToolRequest, input RemoveCartItemInput) (*mcp.CallToolResult, any, error) {
	ctx, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}

	key := model.LineKey{ProductID: input.ProductID, Size: input.Size, Color: input.Color}
	res, err := s.Cart.Remove(ctx, key)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

func (h *Handler) mcpApplyCoupon(ctx context.Context, req *mcp.CallToolRequest, input ApplyCouponInput) (*mcp.CallToolResult, any, error) {
	ctx, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, nil, fmt.Errorf("code is required")
	}

	applied := s.Cart.ApplyCouponCode(ctx, input.Code)
	return nil, couponResponse{Applied: applied, Cart: s.Cart.Snapshot()}, nil
}

func (h *Handler) mcpGetCheckout(ctx context.Context, req *mcp.CallToolRequest, input GetCheckoutInput) (*mcp.CallToolResult, any, error) {
	_, s, err := h.mcpShopper(ctx, &input.Meta)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.Checkout.Session()
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, sess.View(), nil
}

// mcpError converts domain errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}

// mcpShopper resolves meta.storefront-session the way the REST middleware
// resolves the header.
func (h *Handler) mcpShopper(ctx context.Context, meta *MCPMeta) (context.Context, *storefront.Shopper, error) {
	if meta == nil || strings.TrimSpace(meta.Session) == "" {
		return ctx, nil, fmt.Errorf("%s: meta.storefront-session is required in MCP requests", session.CodeSessionRequired)
	}

	token := strings.TrimSpace(meta.Authorization)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}

	id, err := session.Resolve(meta.Session, token, h.opts.ClientVersion)
	if err != nil {
		var verErr *session.VersionError
		if errors.As(err, &verErr) {
			return ctx, nil, fmt.Errorf("%s: %s", session.CodeVersionUnsupported, verErr.Error())
		}
		return ctx, nil, fmt.Errorf("%s: %v", session.CodeSessionRequired, err)
	}

	ctx = session.WithIdentity(ctx, id)
	return ctx, h.registry.Get(ctx, id.ShopperID), nil
}
