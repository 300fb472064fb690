package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"clob/internal/common"
	"clob/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	owner := flag.String("owner", "", "owner username (compulsory)")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel', 'deposit', 'withdraw', 'consume']")

	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	tifStr := flag.String("tif", "gtc", "time in force: 'gtc', 'ioc' or 'fok'")
	price := flag.Uint64("price", 100, "limit price, in ticks")
	qty := flag.Uint64("qty", 10, "quantity, in lots")

	orderID := flag.Uint64("order-id", 0, "order id to cancel")
	amount := flag.Uint64("amount", 0, "amount to deposit or withdraw, in raw units")
	balanceSideStr := flag.String("balance-side", "base", "balance side for deposit/withdraw: 'base' or 'quote'")

	limit := flag.Int("limit", 1, "max events to consume")
	makersStr := flag.String("makers", "", "comma-separated expected maker owners, in queue order")

	flag.Parse()

	if *owner == "" {
		fmt.Println("error: -owner is compulsory")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as '%s'\n", *serverAddr, *owner)

	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}

	switch strings.ToLower(*action) {
	case "place":
		tif := parseTIF(*tifStr)
		if err := sendPlaceLimitOrder(conn, *owner, side, tif, *price, *qty); err != nil {
			log.Fatalf("failed to send order: %v", err)
		}
		fmt.Printf("-> sent %s order: qty %d @ %d, tif %s\n", strings.ToUpper(*sideStr), *qty, *price, *tifStr)

	case "cancel":
		if *orderID == 0 {
			log.Fatal("error: -order-id is required for cancel")
		}
		if err := sendCancelOrder(conn, *owner, side, *orderID); err != nil {
			log.Fatalf("failed to send cancel: %v", err)
		}
		fmt.Printf("-> sent cancel for order %d\n", *orderID)

	case "deposit", "withdraw":
		if *amount == 0 {
			log.Fatal("error: -amount is required")
		}
		balSide := common.Base
		if strings.ToLower(*balanceSideStr) == "quote" {
			balSide = common.Quote
		}
		op := wire.OpDeposit
		if strings.ToLower(*action) == "withdraw" {
			op = wire.OpWithdraw
		}
		if err := sendBalanceOp(conn, op, *owner, balSide, *amount); err != nil {
			log.Fatalf("failed to send %s: %v", *action, err)
		}
		fmt.Printf("-> sent %s of %d (%s)\n", *action, *amount, *balanceSideStr)

	case "consume":
		var makers []string
		if *makersStr != "" {
			makers = strings.Split(*makersStr, ",")
		}
		if err := sendConsumeEvents(conn, *limit, makers); err != nil {
			log.Fatalf("failed to send consume request: %v", err)
		}
		fmt.Printf("-> sent consume request, limit %d\n", *limit)

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press ctrl+c to exit)")
	select {}
}

func parseTIF(s string) common.TimeInForce {
	switch strings.ToLower(s) {
	case "ioc":
		return common.IOC
	case "fok":
		return common.FOK
	default:
		return common.GTC
	}
}

func sendBalanceOp(conn net.Conn, op wire.MessageType, owner string, side common.BalanceSide, amount uint64) error {
	buf := make([]byte, 2+1+8+1+len(owner))
	binary.BigEndian.PutUint16(buf[0:2], uint16(op))
	buf[2] = byte(side)
	binary.BigEndian.PutUint64(buf[3:11], amount)
	buf[11] = uint8(len(owner))
	copy(buf[12:], owner)
	_, err := conn.Write(buf)
	return err
}

func sendPlaceLimitOrder(conn net.Conn, owner string, side common.Side, tif common.TimeInForce, price, qty uint64) error {
	buf := make([]byte, 2+1+1+8+8+1+len(owner))
	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.OpPlaceLimitOrder))
	buf[2] = byte(side)
	buf[3] = byte(tif)
	binary.BigEndian.PutUint64(buf[4:12], price)
	binary.BigEndian.PutUint64(buf[12:20], qty)
	buf[20] = uint8(len(owner))
	copy(buf[21:], owner)
	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, owner string, side common.Side, orderID uint64) error {
	buf := make([]byte, 2+1+8+1+len(owner))
	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.OpCancelOrder))
	buf[2] = byte(side)
	binary.BigEndian.PutUint64(buf[3:11], orderID)
	buf[11] = uint8(len(owner))
	copy(buf[12:], owner)
	_, err := conn.Write(buf)
	return err
}

func sendConsumeEvents(conn net.Conn, limit int, makerOwners []string) error {
	size := 2 + 1 + 1
	for _, o := range makerOwners {
		size += 1 + len(o)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(wire.OpConsumeEvents))
	buf[2] = uint8(limit)
	buf[3] = uint8(len(makerOwners))
	offset := 4
	for _, o := range makerOwners {
		buf[offset] = uint8(len(o))
		offset++
		copy(buf[offset:], o)
		offset += len(o)
	}
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and prints Report frames from the server,
// both synchronous acks/errors and unsolicited fill notifications pushed
// out-of-band to either side of a match.
func readReports(conn net.Conn) {
	const fixedLen = 1 + 8 + 8 + 2
	for {
		header := make([]byte, fixedLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		typ := header[0]
		qty := binary.BigEndian.Uint64(header[1:9])
		price := binary.BigEndian.Uint64(header[9:17])
		errLen := binary.BigEndian.Uint16(header[17:19])

		var errStr string
		if errLen > 0 {
			errBuf := make([]byte, errLen)
			if _, err := io.ReadFull(conn, errBuf); err != nil {
				log.Printf("error reading report body: %v", err)
				return
			}
			errStr = string(errBuf)
		}

		switch typ {
		case 0:
			fmt.Printf("\n[ACK] qty=%d price=%d\n", qty, price)
		case 1:
			fmt.Printf("\n[FILL] qty=%d price=%d\n", qty, price)
		default:
			fmt.Printf("\n[ERROR] %s\n", errStr)
		}
	}
}
