// cmd/client is a reference CLI for exercising internal/transport's
// newline-delimited JSON protocol end to end, the same role the teacher's
// original client played against its binary wire format.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
	"fenrir/internal/transport"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9443", "address of the trading core's transport listener")
	owner := flag.String("owner", "", "user id placing/cancelling the order (required)")
	action := flag.String("action", "place", "one of: place, cancel, get, book, portfolio")

	commodity := flag.String("commodity", "crude_oil", "commodity to trade")
	side := flag.String("side", "buy", "buy or sell")
	orderType := flag.String("type", "limit", "market, limit, stop, or stop_limit")
	tif := flag.String("tif", "gtc", "day, gtc, ioc, or fok")
	qty := flag.String("qty", "10", "order quantity")
	limitPrice := flag.String("price", "0", "limit price (limit/stop_limit orders)")
	stopPrice := flag.String("stop", "0", "stop price (stop/stop_limit orders)")

	orderID := flag.String("orderId", "", "order id, required for -action cancel/get")
	depth := flag.Int("depth", 10, "book snapshot depth")

	flag.Parse()

	if *owner == "" && *action != "book" {
		fmt.Fprintln(os.Stderr, "Error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	req, err := buildRequest(*action, requestArgs{
		owner: *owner, commodity: *commodity, side: *side, orderType: *orderType, tif: *tif,
		qty: *qty, limitPrice: *limitPrice, stopPrice: *stopPrice, orderID: *orderID, depth: *depth,
	})
	if err != nil {
		log.Fatalf("building request: %v", err)
	}

	line, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("encoding request: %v", err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		log.Fatalf("sending request: %v", err)
	}

	respLine, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		log.Fatalf("reading response: %v", err)
	}
	var resp transport.Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		log.Fatalf("decoding response: %v", err)
	}

	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "server error: %s\n", resp.Error)
		os.Exit(1)
	}
	pretty, _ := json.MarshalIndent(resp.Data, "", "  ")
	fmt.Println(string(pretty))
}

type requestArgs struct {
	owner, commodity, side, orderType, tif string
	qty, limitPrice, stopPrice             string
	orderID                                string
	depth                                  int
}

func buildRequest(action string, a requestArgs) (transport.Request, error) {
	id := uuid.NewString()
	switch strings.ToLower(action) {
	case "place":
		qty, err := decimal.NewFromString(a.qty)
		if err != nil {
			return transport.Request{}, fmt.Errorf("-qty: %w", err)
		}
		limit, err := decimal.NewFromString(a.limitPrice)
		if err != nil {
			return transport.Request{}, fmt.Errorf("-price: %w", err)
		}
		stop, err := decimal.NewFromString(a.stopPrice)
		if err != nil {
			return transport.Request{}, fmt.Errorf("-stop: %w", err)
		}
		payload, _ := json.Marshal(transport.PlaceOrderPayload{
			UserID: a.owner, Commodity: commodityOf(a.commodity), Side: a.side, Type: a.orderType,
			Quantity: qty, LimitPrice: limit, StopPrice: stop, TimeInForce: a.tif,
		})
		return transport.Request{ID: id, Type: transport.RequestPlaceOrder, Payload: payload}, nil

	case "cancel":
		if a.orderID == "" {
			return transport.Request{}, fmt.Errorf("-orderId is required")
		}
		payload, _ := json.Marshal(transport.OrderIDPayload{OrderID: a.orderID})
		return transport.Request{ID: id, Type: transport.RequestCancelOrder, Payload: payload}, nil

	case "get":
		if a.orderID == "" {
			return transport.Request{}, fmt.Errorf("-orderId is required")
		}
		payload, _ := json.Marshal(transport.OrderIDPayload{OrderID: a.orderID})
		return transport.Request{ID: id, Type: transport.RequestGetOrder, Payload: payload}, nil

	case "book":
		payload, _ := json.Marshal(transport.BookSnapshotPayload{Commodity: commodityOf(a.commodity), Depth: a.depth})
		return transport.Request{ID: id, Type: transport.RequestBookSnapshot, Payload: payload}, nil

	case "portfolio":
		payload, _ := json.Marshal(transport.UserIDPayload{UserID: a.owner})
		return transport.Request{ID: id, Type: transport.RequestPortfolio, Payload: payload}, nil

	default:
		return transport.Request{}, fmt.Errorf("unknown action %q", action)
	}
}

func commodityOf(s string) domain.Commodity {
	return domain.Commodity(s)
}
