// creditctl - утилита для работы с API fuelcredit из командной строки.
//
//	creditctl token -k secret -role admin
//	creditctl -addr http://localhost:8080 -token $TOKEN order-submit -client TT25123 -product AGO ...
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/fuelcredit/internal/apiclient"
	"github.com/iurnickita/fuelcredit/internal/handler"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/token"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	run   func(c apiclient.Client, args []string) (any, error)
}

var commands = map[string]command{
	"client-add": {"-name NAME -phone PHONE", clientAdd},
	"statement":  {"-client REF", statement},

	"order-submit":    {"-client REF -product P -vehicle V -driver D -driver-phone P -quantity Q -region R", orderSubmit},
	"order-approve":   {"-id ORDER -omc -bdc -depot -p -s -margin -tax -total -due YYYY-MM-DD", orderApprove},
	"order-get":       {"-id ORDER", orderGet},
	"orders-approved": {"", func(c apiclient.Client, _ []string) (any, error) { return c.ApprovedOrders() }},

	"pay":     {"-client REF [-order ID | -number N] -amount A -bank B -proof URL", pay},
	"confirm": {"-id PAYMENT [-feedback TEXT]", confirm},

	"debt":    {"-order ID | -client REF", debt},
	"debtors": {"", func(c apiclient.Client, _ []string) (any, error) { return c.Debtors() }},

	"bdc-create":  {"-name N -phone P -location L", bdcCreate},
	"bdc-txn":     {"-id ACCOUNT -amount A -type add|subtract [-note TEXT]", bdcTxn},
	"bdc-history": {"-id ACCOUNT [-start YYYY-MM-DD] [-end YYYY-MM-DD]", bdcHistory},

	"dashboard": {"", func(c apiclient.Client, _ []string) (any, error) { return c.Dashboard() }},
	"activity":  {"", func(c apiclient.Client, _ []string) (any, error) { return c.DashboardDetails() }},
	"settings":  {"[-dashboard=true|false] [-approve=true|false]", settings},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "creditctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("creditctl", flag.ContinueOnError)
	addr := fs.String("addr", envOr("FUELCREDIT_ADDR", "http://localhost:8080"), "service address")
	tok := fs.String("token", os.Getenv("FUELCREDIT_TOKEN"), "bearer token")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	if name == "token" {
		s, err := issueToken(rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return errUsage
	}
	result, err := cmd.run(apiclient.NewClient(*addr, *tok), rest)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: creditctl [-addr URL] [-token TOKEN] <command> [flags]")
	fmt.Fprintln(w, "  token -k SECRET -role admin|assistant|client [-client UUID] [-ttl 24h]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s %s\n", name, commands[name].usage)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func issueToken(args []string) (string, error) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("k", os.Getenv("SECRET_KEY"), "signing key")
	role := fs.String("role", string(model.RoleAdmin), "role")
	clientID := fs.String("client", "", "client UUID for role client")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}

	caller := model.Caller{Role: model.Role(*role)}
	if *clientID != "" {
		id, err := uuid.Parse(*clientID)
		if err != nil {
			return "", fmt.Errorf("client id: %w", err)
		}
		caller.ClientID = id
	}
	return token.BuildJWTString(*secret, *ttl, caller)
}

func clientAdd(c apiclient.Client, args []string) (any, error) {
	var req handler.PostClientJSONRequest
	fs := flag.NewFlagSet("client-add", flag.ContinueOnError)
	fs.StringVar(&req.Name, "name", "", "client name")
	fs.StringVar(&req.Phone, "phone", "", "client phone")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	return c.RegisterClient(req)
}

func statement(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("statement", flag.ContinueOnError)
	ref := fs.String("client", "", "client UUID or code")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	return c.Statement(*ref)
}

func orderSubmit(c apiclient.Client, args []string) (any, error) {
	var req handler.PostOrderJSONRequest
	var quantity string
	fs := flag.NewFlagSet("order-submit", flag.ContinueOnError)
	fs.StringVar(&req.ClientID, "client", "", "client UUID or code")
	fs.StringVar(&req.Product, "product", "", "product")
	fs.StringVar(&req.VehicleNumber, "vehicle", "", "vehicle number")
	fs.StringVar(&req.DriverName, "driver", "", "driver name")
	fs.StringVar(&req.DriverPhone, "driver-phone", "", "driver phone")
	fs.StringVar(&quantity, "quantity", "", "quantity")
	fs.StringVar(&req.Region, "region", "", "region")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	req.Quantity = handler.RawValue(quantity)
	return c.SubmitOrder(req)
}

func orderApprove(c apiclient.Client, args []string) (any, error) {
	var req handler.PostApproveJSONRequest
	var id, p, s, margin, tax, total string
	fs := flag.NewFlagSet("order-approve", flag.ContinueOnError)
	fs.StringVar(&id, "id", "", "order id")
	fs.StringVar(&req.OMC, "omc", "", "OMC")
	fs.StringVar(&req.BDC, "bdc", "", "BDC")
	fs.StringVar(&req.Depot, "depot", "", "depot")
	fs.StringVar(&p, "p", "", "BDC to OMC purchase price")
	fs.StringVar(&s, "s", "", "BDC to OMC selling price")
	fs.StringVar(&margin, "margin", "", "margin per unit")
	fs.StringVar(&tax, "tax", "", "tax")
	fs.StringVar(&total, "total", "", "total debt")
	fs.StringVar(&req.DueDate, "due", "", "due date")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	req.PBdcOmc = handler.RawValue(p)
	req.SBdcOmc = handler.RawValue(s)
	req.Margin = handler.RawValue(margin)
	req.Tax = handler.RawValue(tax)
	req.TotalDebt = handler.RawValue(total)

	approved, err := c.Approve(id, req)
	if err != nil {
		return nil, err
	}
	return handler.PostApproveJSONResponse{Approved: approved}, nil
}

func orderGet(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("order-get", flag.ContinueOnError)
	id := fs.String("id", "", "order id")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	return c.GetOrder(*id)
}

func pay(c apiclient.Client, args []string) (any, error) {
	var req handler.PostPaymentJSONRequest
	var amount string
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	fs.StringVar(&req.ClientID, "client", "", "client UUID or code")
	fs.StringVar(&req.OrderID, "order", "", "order id")
	fs.StringVar(&req.OrderNumber, "number", "", "order number")
	fs.StringVar(&amount, "amount", "", "amount")
	fs.StringVar(&req.BankName, "bank", "", "bank name")
	fs.StringVar(&req.ProofURL, "proof", "", "proof of payment URL")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	req.Amount = handler.RawValue(amount)
	return c.RecordPayment(req)
}

func confirm(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("confirm", flag.ContinueOnError)
	id := fs.String("id", "", "payment id")
	feedback := fs.String("feedback", "", "feedback")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if err := c.ConfirmPayment(*id, *feedback); err != nil {
		return nil, err
	}
	return handler.OKJSONResponse{OK: true}, nil
}

func debt(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("debt", flag.ContinueOnError)
	orderID := fs.String("order", "", "order id")
	clientRef := fs.String("client", "", "client UUID or code")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if *orderID != "" {
		return c.DebtForOrder(*orderID)
	}
	return c.DebtForClient(*clientRef)
}

func bdcCreate(c apiclient.Client, args []string) (any, error) {
	var req handler.PostBDCJSONRequest
	fs := flag.NewFlagSet("bdc-create", flag.ContinueOnError)
	fs.StringVar(&req.Name, "name", "", "account name")
	fs.StringVar(&req.Phone, "phone", "", "phone")
	fs.StringVar(&req.Location, "location", "", "location")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	id, err := c.CreateBDC(req)
	if err != nil {
		return nil, err
	}
	return handler.PostBDCJSONResponse{AccountID: id}, nil
}

func bdcTxn(c apiclient.Client, args []string) (any, error) {
	var req handler.PostBDCTransactionJSONRequest
	var id, amount string
	fs := flag.NewFlagSet("bdc-txn", flag.ContinueOnError)
	fs.StringVar(&id, "id", "", "account id")
	fs.StringVar(&amount, "amount", "", "amount")
	fs.StringVar(&req.Type, "type", "", "add or subtract")
	fs.StringVar(&req.Note, "note", "", "note")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	req.Amount = handler.RawValue(amount)
	balance, err := c.BDCTransaction(id, req)
	if err != nil {
		return nil, err
	}
	return handler.PostBDCTransactionJSONResponse{NewBalance: balance}, nil
}

func bdcHistory(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("bdc-history", flag.ContinueOnError)
	id := fs.String("id", "", "account id")
	start := fs.String("start", "", "start date")
	end := fs.String("end", "", "end date")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	return c.BDCHistory(*id, *start, *end)
}

func settings(c apiclient.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	dashboard := fs.Bool("dashboard", false, "enable dashboard")
	approve := fs.Bool("approve", false, "enable approved orders view")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	// без флагов - только чтение
	if fs.NFlag() == 0 {
		return c.Settings()
	}

	current, err := c.Settings()
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dashboard":
			current.ViewDashboard = *dashboard
		case "approve":
			current.ApproveOrders = *approve
		}
	})
	if err := c.UpdateSettings(current); err != nil {
		return nil, err
	}
	return current, nil
}
