// storefrontctl is a CLI tool for driving storefront cart and checkout flows.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storefrontctl cart     -shopper ID
//	storefrontctl add      -shopper ID -product ID [-qty N] [-price P] [-size S] [-color C]
//	storefrontctl qty      -shopper ID -product ID -qty N
//	storefrontctl remove   -shopper ID -product ID
//	storefrontctl coupon   -shopper ID -code CODE | -remove
//	storefrontctl begin    -shopper ID [-mode CART|BUY_NOW] [-product ID -qty N]
//	storefrontctl address  -shopper ID
//	storefrontctl method   -shopper ID -method COD|GATEWAY
//	storefrontctl place    -shopper ID [-wait]
//
// Examples:
//
//	storefrontctl add -shopper u1 -product 60 -qty 2 -price 249.50
//	storefrontctl begin -shopper u1
//	storefrontctl address -shopper u1 && storefrontctl next -shopper u1
//	storefrontctl method -shopper u1 -method COD && storefrontctl next -shopper u1
//	storefrontctl place -shopper u1 -wait
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"storefront-checkout/internal/session"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL     string
	shopperID     string
	token         string
	clientVersion string
	quiet         bool
	noColor       bool
	verbose       bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

type command struct {
	summary string
	run     func(args []string)
}

var commands = map[string]command{
	"cart":     {"Show the cart and its totals", runCart},
	"sync":     {"Pull the cart from the marketplace", runSync},
	"add":      {"Add a product to the cart", runAdd},
	"qty":      {"Set a cart line's quantity", runQty},
	"remove":   {"Remove a cart line", runRemove},
	"clear":    {"Empty the cart", runClear},
	"coupon":   {"Apply or remove a coupon", runCoupon},
	"begin":    {"Start a checkout from the cart or one product", runBegin},
	"status":   {"Show the active checkout", runStatus},
	"address":  {"Set the shipping address", runAddress},
	"next":     {"Advance the checkout one step", runStep("next")},
	"back":     {"Go back one checkout step", runStep("back")},
	"method":   {"Select the payment method", runMethod},
	"place":    {"Place the order", runPlace},
	"retry":    {"Retry a pending payment verification", runRetry},
	"abandon":  {"Drop the active checkout", runAbandon},
	"callback": {"Post a hosted payment widget result", runCallback},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	args := os.Args[2:]

	switch name {
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}
	cmd.run(args)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storefrontctl - storefront cart and checkout tool

Usage:
  storefrontctl <command> [options]

Commands:
`)
	for _, name := range []string{
		"cart", "sync", "add", "qty", "remove", "clear", "coupon",
		"begin", "status", "address", "next", "back", "method", "place", "retry", "abandon", "callback",
	} {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, `
Run 'storefrontctl <command> -h' for command-specific options.
`)
}

// newFlagSet returns a flag set with the global flags registered.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", envOr("STOREFRONT_URL", "http://localhost:8080"), "Storefront server base URL")
	fs.StringVar(&shopperID, "shopper", os.Getenv("STOREFRONT_SHOPPER"), "Shopper ID (required)")
	fs.StringVar(&token, "token", os.Getenv("STOREFRONT_TOKEN"), "Marketplace bearer token")
	fs.StringVar(&clientVersion, "client-version", "1.0.0", "Client API version to announce")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the key result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storefrontctl %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and enforces the shopper flag.
func parse(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
	if shopperID == "" && fs.Name() != "callback" {
		fmt.Fprintf(os.Stderr, "Error: -shopper is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runCart(args []string) {
	fs := newFlagSet("cart", "-shopper ID")
	parse(fs, args)

	resp, err := doRequest("GET", "/api/v1/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}
	printCart(resp)
}

func runSync(args []string) {
	fs := newFlagSet("sync", "-shopper ID")
	parse(fs, args)

	resp, err := doRequest("POST", "/api/v1/cart/sync", nil)
	if err != nil {
		fatal("Failed to sync cart: %v", err)
	}
	printNotice(resp)
	cart, _ := resp["cart"].(map[string]interface{})
	printCart(cart)
}

func runAdd(args []string) {
	fs := newFlagSet("add", "-shopper ID -product ID [options]")
	var productID, price, size, color, name string
	var qty, max int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	fs.StringVar(&price, "price", "0", "Unit price as a decimal")
	fs.StringVar(&size, "size", "", "Size variant")
	fs.StringVar(&color, "color", "", "Color variant")
	fs.StringVar(&name, "name", "", "Display name")
	fs.IntVar(&max, "max", 0, "Stock ceiling (0 = unknown)")
	parse(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]interface{}{
		"productId":   productID,
		"name":        name,
		"quantity":    qty,
		"unitPrice":   price,
		"size":        size,
		"color":       color,
		"maxQuantity": max,
	}
	resp, err := doRequest("POST", "/api/v1/cart/items", body)
	if err != nil {
		fatal("Failed to add item: %v", err)
	}
	printNotice(resp)
	state, _ := resp["state"].(map[string]interface{})
	printSuccess("Item added")
	printCart(state)
}

func runQty(args []string) {
	fs := newFlagSet("qty", "-shopper ID -product ID -qty N")
	var productID, size, color string
	var qty int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&qty, "qty", 1, "New quantity (0 removes the line)")
	fs.StringVar(&size, "size", "", "Size variant")
	fs.StringVar(&color, "color", "", "Color variant")
	parse(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]interface{}{"quantity": qty, "size": size, "color": color}
	resp, err := doRequest("PATCH", "/api/v1/cart/items/"+url.PathEscape(productID), body)
	if err != nil {
		fatal("Failed to update quantity: %v", err)
	}
	printNotice(resp)
	state, _ := resp["state"].(map[string]interface{})
	printCart(state)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "-shopper ID -product ID")
	var productID, size, color string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.StringVar(&size, "size", "", "Size variant")
	fs.StringVar(&color, "color", "", "Color variant")
	parse(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	q := url.Values{}
	if size != "" {
		q.Set("size", size)
	}
	if color != "" {
		q.Set("color", color)
	}
	path := "/api/v1/cart/items/" + url.PathEscape(productID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := doRequest("DELETE", path, nil)
	if err != nil {
		fatal("Failed to remove item: %v", err)
	}
	printNotice(resp)
	state, _ := resp["state"].(map[string]interface{})
	printCart(state)
}

func runClear(args []string) {
	fs := newFlagSet("clear", "-shopper ID")
	parse(fs, args)

	resp, err := doRequest("DELETE", "/api/v1/cart", nil)
	if err != nil {
		fatal("Failed to clear cart: %v", err)
	}
	printNotice(resp)
	printSuccess("Cart cleared")
}

func runCoupon(args []string) {
	fs := newFlagSet("coupon", "-shopper ID -code CODE | -remove")
	var code string
	var remove bool
	fs.StringVar(&code, "code", "", "Coupon code to apply")
	fs.BoolVar(&remove, "remove", false, "Remove the applied coupon")
	parse(fs, args)

	if remove {
		resp, err := doRequest("DELETE", "/api/v1/cart/coupon", nil)
		if err != nil {
			fatal("Failed to remove coupon: %v", err)
		}
		printSuccess("Coupon removed")
		printCart(resp)
		return
	}
	if code == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/api/v1/cart/coupon", map[string]string{"code": code})
	if err != nil {
		fatal("Failed to apply coupon: %v", err)
	}
	applied, _ := resp["applied"].(bool)
	if quiet {
		fmt.Println(applied)
		return
	}
	if applied {
		printSuccess("Coupon %s applied", code)
	} else {
		printWarning("Coupon %s earns no discount", code)
	}
	cart, _ := resp["cart"].(map[string]interface{})
	printCart(cart)
}

// =============================================================================
// CHECKOUT COMMANDS
// =============================================================================

func runBegin(args []string) {
	fs := newFlagSet("begin", "-shopper ID [-mode CART|BUY_NOW] [-product ID -qty N]")
	var mode, productID, size, color string
	var qty int
	fs.StringVar(&mode, "mode", "CART", "Checkout mode: CART or BUY_NOW")
	fs.StringVar(&productID, "product", "", "Product ID (BUY_NOW)")
	fs.IntVar(&qty, "qty", 1, "Quantity (BUY_NOW)")
	fs.StringVar(&size, "size", "", "Size variant (BUY_NOW)")
	fs.StringVar(&color, "color", "", "Color variant (BUY_NOW)")
	parse(fs, args)

	mode = strings.ToUpper(mode)
	body := map[string]interface{}{"mode": mode}
	if mode == "BUY_NOW" {
		if productID == "" {
			fatal("-product is required for BUY_NOW")
		}
		body["productId"] = productID
		body["quantity"] = qty
		body["size"] = size
		body["color"] = color
	}

	resp, err := doRequest("POST", "/api/v1/checkout", body)
	if err != nil {
		fatal("Failed to begin checkout: %v", err)
	}
	sessionID, _ := resp["sessionId"].(string)
	if quiet {
		fmt.Println(sessionID)
		return
	}
	printSuccess("Checkout started")
	printCheckout(resp)
}

func runStatus(args []string) {
	fs := newFlagSet("status", "-shopper ID")
	parse(fs, args)

	resp, err := doRequest("GET", "/api/v1/checkout", nil)
	if err != nil {
		fatal("Failed to get checkout: %v", err)
	}
	if quiet {
		fmt.Println(resp["step"])
		return
	}
	printCheckout(resp)
}

func runAddress(args []string) {
	fs := newFlagSet("address", "-shopper ID [options]")
	info := map[string]*string{}
	for _, f := range []struct{ name, def string }{
		{"firstName", "Test"},
		{"lastName", "Buyer"},
		{"phone", "+919876543210"},
		{"email", "test@example.com"},
		{"street", "12 MG Road"},
		{"city", "Bengaluru"},
		{"state", "KA"},
		{"zipCode", "560001"},
		{"country", "IN"},
	} {
		info[f.name] = fs.String(f.name, f.def, "Shipping "+f.name)
	}
	parse(fs, args)

	body := make(map[string]string, len(info))
	for k, v := range info {
		body[k] = *v
	}
	resp, err := doRequest("PUT", "/api/v1/checkout/shipping", body)
	if err != nil {
		fatal("Failed to set address: %v", err)
	}
	printSuccess("Shipping address set")
	printCheckout(resp)
}

func runStep(direction string) func(args []string) {
	return func(args []string) {
		fs := newFlagSet(direction, "-shopper ID")
		parse(fs, args)

		resp, err := doRequest("POST", "/api/v1/checkout/"+direction, nil)
		if err != nil {
			fatal("Failed to move checkout: %v", err)
		}
		step, _ := resp["step"].(string)
		if quiet {
			fmt.Println(step)
			return
		}
		printSuccess("Step: %s", step)
	}
}

func runMethod(args []string) {
	fs := newFlagSet("method", "-shopper ID -method COD|GATEWAY")
	var method string
	fs.StringVar(&method, "method", "COD", "Payment method: COD or GATEWAY")
	parse(fs, args)

	resp, err := doRequest("PUT", "/api/v1/checkout/payment-method",
		map[string]string{"paymentMethod": strings.ToUpper(method)})
	if err != nil {
		fatal("Failed to select payment method: %v", err)
	}
	printSuccess("Payment method set")
	printCheckout(resp)
}

func runPlace(args []string) {
	fs := newFlagSet("place", "-shopper ID [-wait]")
	var wait bool
	var timeout time.Duration
	fs.BoolVar(&wait, "wait", false, "Poll until the submission finishes")
	fs.DurationVar(&timeout, "timeout", 5*time.Minute, "How long -wait polls")
	parse(fs, args)

	resp, err := doRequest("POST", "/api/v1/checkout/place-order", nil)
	if err != nil {
		fatal("Failed to place order: %v", err)
	}
	if !wait {
		printSuccess("Order submission started")
		printCheckout(resp)
		return
	}

	// Polling output stays quiet; only the final state is printed.
	wasQuiet := quiet
	quiet = true
	deadline := time.Now().Add(timeout)
	for {
		if submitting, _ := resp["submitting"].(bool); !submitting {
			break
		}
		if w, ok := resp["widget"].(map[string]interface{}); ok && !wasQuiet {
			if u, _ := w["redirectUrl"].(string); u != "" {
				fmt.Fprintf(os.Stderr, "%s→ Complete payment at %s%s\n", colorGray, u, colorReset)
			} else if tok, _ := w["callbackToken"].(string); tok != "" {
				fmt.Fprintf(os.Stderr, "%s→ Waiting for widget result: storefrontctl callback -order %v -callback-token %s%s\n",
					colorGray, w["gatewayOrderId"], tok, colorReset)
			}
		}
		if time.Now().After(deadline) {
			quiet = wasQuiet
			fatal("Timed out waiting for the order")
		}
		time.Sleep(time.Second)
		resp, err = doRequest("GET", "/api/v1/checkout", nil)
		if err != nil {
			quiet = wasQuiet
			fatal("Failed to poll checkout: %v", err)
		}
	}
	quiet = wasQuiet
	printOutcome(resp)
}

func runRetry(args []string) {
	fs := newFlagSet("retry", "-shopper ID [-session ID]")
	var sessionID string
	fs.StringVar(&sessionID, "session", "", "Checkout session ID (default: active session)")
	parse(fs, args)

	var body interface{}
	if sessionID != "" {
		body = map[string]string{"sessionId": sessionID}
	}
	resp, err := doRequest("POST", "/api/v1/checkout/verification/retry", body)
	if err != nil {
		fatal("Failed to retry verification: %v", err)
	}
	printOutcome(map[string]interface{}{"outcome": resp})
}

func runAbandon(args []string) {
	fs := newFlagSet("abandon", "-shopper ID")
	parse(fs, args)

	if _, err := doRequest("DELETE", "/api/v1/checkout", nil); err != nil {
		fatal("Failed to abandon checkout: %v", err)
	}
	printSuccess("Checkout abandoned")
}

func runCallback(args []string) {
	fs := newFlagSet("callback", "-order GATEWAY_ORDER_ID -callback-token TOKEN [-outcome success|dismissed]")
	var orderID, callbackToken, outcome, paymentID, signature string
	fs.StringVar(&orderID, "order", "", "Gateway order ID (required)")
	fs.StringVar(&callbackToken, "callback-token", "", "Callback token from the widget presentation (required)")
	fs.StringVar(&outcome, "outcome", "success", "Widget outcome: success or dismissed")
	fs.StringVar(&paymentID, "payment-id", "pay_test", "Gateway payment ID")
	fs.StringVar(&signature, "signature", "sig_test", "Gateway signature")
	parse(fs, args)

	if orderID == "" || callbackToken == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/api/v1/payments/callback", map[string]string{
		"outcome":          outcome,
		"gatewayOrderId":   orderID,
		"gatewayPaymentId": paymentID,
		"gatewaySignature": signature,
		"callbackToken":    callbackToken,
	})
	if err != nil {
		fatal("Failed to post callback: %v", err)
	}
	delivered, _ := resp["delivered"].(bool)
	settled, _ := resp["settled"].(bool)
	switch {
	case delivered:
		printSuccess("Result delivered")
	case settled:
		printSuccess("Payment settled: %v", resp["status"])
	default:
		printWarning("Result ignored")
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := strings.TrimSuffix(serverURL, "/") + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if shopperID != "" {
		header, err := session.FormatHeader(session.Identity{ShopperID: shopperID, ClientVersion: clientVersion})
		if err != nil {
			return nil, fmt.Errorf("encoding session header: %w", err)
		}
		req.Header.Set(session.HeaderName, header)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	result := map[string]interface{}{}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

// errorMessage extracts "CODE: message" from an API error body.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code == "" {
		return string(body)
	}
	return e.Error.Code + ": " + e.Error.Message
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printCart(cart map[string]interface{}) {
	if cart == nil {
		return
	}
	if quiet {
		fmt.Println(cart["total"])
		return
	}
	fmt.Printf("  Items: %s%v%s\n", colorCyan, cart["itemCount"], colorReset)
	if coupon, _ := cart["appliedCoupon"].(string); coupon != "" {
		fmt.Printf("  Coupon: %s (-%v)\n", coupon, cart["discount"])
	}
	fmt.Printf("  Subtotal: %v  Shipping: %v  Tax: %v\n", cart["subtotal"], cart["shipping"], cart["tax"])
	fmt.Printf("  Total: %s%v%s\n", colorGreen, cart["total"], colorReset)
}

func printCheckout(view map[string]interface{}) {
	if quiet {
		return
	}
	fmt.Printf("  Session: %s%v%s  Mode: %v  Step: %s%v%s\n",
		colorCyan, view["sessionId"], colorReset, view["mode"], colorBold, view["step"], colorReset)
	if method, ok := view["paymentMethod"]; ok {
		fmt.Printf("  Payment: %v\n", method)
	}
	if totals, ok := view["totals"].(map[string]interface{}); ok {
		fmt.Printf("  Total: %s%v%s\n", colorGreen, totals["total"], colorReset)
	}
	if msg, _ := view["lastError"].(string); msg != "" {
		printError("%s", msg)
	}
}

// printOutcome reports the result recorded on a checkout view.
func printOutcome(view map[string]interface{}) {
	outcome, _ := view["outcome"].(map[string]interface{})
	status, _ := outcome["status"].(string)
	if quiet {
		fmt.Println(status)
		return
	}
	switch status {
	case "completed":
		printSuccess("Order placed!")
		if order, ok := outcome["order"].(map[string]interface{}); ok {
			fmt.Printf("  Order ID: %s%v%s\n", colorGreen, order["id"], colorReset)
		}
	case "pending_verification":
		printWarning("Payment taken but not yet verified; run 'storefrontctl retry'")
	case "awaiting_callback":
		printWarning("Still waiting for the payment gateway; the order completes when its result arrives")
	case "dismissed":
		printWarning("%v", outcome["message"])
	default:
		if msg, _ := view["lastError"].(string); msg != "" {
			printError("%s", msg)
		} else {
			printWarning("Status: %s", status)
		}
	}
}

func printNotice(resp map[string]interface{}) {
	if n, _ := resp["notice"].(string); n != "" && !quiet {
		printWarning("%s", n)
	}
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
