// Package ofx imports bank and card statements as expense records.
package ofx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser reads OFX/QFX statements.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// preprocess fixes formatting issues some banks emit.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseRecords reads every debit in the statement as an expense record for uid.
// Credits are skipped.
func (p *Parser) ParseRecords(ctx context.Context, reader io.Reader, uid string) ([]model.ExpenseRecord, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var (
		records          []model.ExpenseRecord
		bankStmts, cards int
	)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			records = append(records, p.convert(uid, string(stmt.BankAcctFrom.AcctID), stmt.BankTranList.Transactions)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			cards++
			records = append(records, p.convert(uid, string(stmt.CCAcctFrom.AcctID), stmt.BankTranList.Transactions)...)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("parsed OFX statement",
		"records", len(records),
		"bank_statements", bankStmts,
		"card_statements", cards)
	return records, nil
}

func (p *Parser) convert(uid, accountID string, txns []ofxgo.Transaction) []model.ExpenseRecord {
	records := make([]model.ExpenseRecord, 0, len(txns))
	for _, tx := range txns {
		amount, _ := tx.TrnAmt.Float64()
		if amount >= 0 {
			continue
		}

		merchant := extractMerchantName(tx)
		fields := map[string]any{
			"vendor":  merchant,
			"amount":  -amount,
			"type":    fmt.Sprintf("%v", tx.TrnType),
			"account": accountID,
		}
		if tx.CheckNum != "" {
			fields["check_number"] = string(tx.CheckNum)
		}
		if tx.Memo != "" {
			fields["memo"] = string(tx.Memo)
		}

		records = append(records, model.ExpenseRecord{
			ID:        RecordID(uid, accountID, string(tx.FiTID)),
			UserID:    uid,
			GeoInfo:   model.GeoInfoFromLocation(payeeLocation(tx, merchant)),
			CreatedAt: tx.DtPosted.Time,
			Fields:    fields,
		})
	}
	return records
}

// RecordID derives a stable record id so re-importing a statement
// replaces rather than duplicates.
func RecordID(uid, accountID, fitID string) string {
	sum := sha256.Sum256([]byte(uid + "|" + accountID + "|" + fitID))
	return "ofx_" + hex.EncodeToString(sum[:12])
}

// payeeLocation prefers the payee's address and falls back to the merchant name.
func payeeLocation(tx ofxgo.Transaction, merchant string) string {
	if tx.Payee == nil {
		return merchant
	}
	var parts []string
	for _, s := range []ofxgo.String{tx.Payee.Addr1, tx.Payee.Addr2, tx.Payee.City, tx.Payee.State, tx.Payee.PostalCode} {
		if v := strings.TrimSpace(string(s)); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return merchant
	}
	return strings.Join(parts, ", ")
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"UPI/",
}

// extractMerchantName returns a clean merchant name.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// Accounts lists the account ids in the statement, sorted.
func (p *Parser) Accounts(reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			seen[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			seen[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(seen))
	for acct := range seen {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
