package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/johnstarich/banklink/reconcile"
	"github.com/johnstarich/banklink/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOFX(t *testing.T) []byte {
	t.Helper()
	version, err := ofxgo.NewOfxVersion("203")
	require.NoError(t, err)
	usd, err := ofxgo.NewCurrSymbol("USD")
	require.NoError(t, err)
	status := ofxgo.Status{Code: 0, Severity: ofxgo.String("INFO")}
	posted := time.Date(2019, 8, 1, 0, 0, 0, 0, time.UTC)
	resp := ofxgo.Response{
		Version: version,
		Signon: ofxgo.SignonResponse{
			Status:   status,
			DtServer: ofxgo.Date{Time: posted},
			Language: ofxgo.String("ENG"),
			Org:      ofxgo.String("Bank"),
			Fid:      ofxgo.String("1234"),
		},
		Bank: []ofxgo.Message{
			&ofxgo.StatementResponse{
				TrnUID: ofxgo.UID("0f94ce83-13b7-7568-e4fc-c02c7b47e7ab"),
				Status: status,
				CurDef: *usd,
				DtAsOf: ofxgo.Date{Time: posted},
				BankAcctFrom: ofxgo.BankAcct{
					BankID:   ofxgo.String("123456789"),
					AcctID:   ofxgo.String("1111"),
					AcctType: ofxgo.AcctTypeChecking,
				},
				BankTranList: &ofxgo.TransactionList{
					DtStart: ofxgo.Date{Time: posted},
					DtEnd:   ofxgo.Date{Time: posted},
					Transactions: []ofxgo.Transaction{
						{
							TrnType:  ofxgo.TrnTypeDebit,
							DtPosted: ofxgo.Date{Time: posted},
							TrnAmt:   makeOFXAmount(-25.5),
							FiTID:    ofxgo.String("t1"),
							Name:     ofxgo.String("Grocer"),
						},
						{
							TrnType:  ofxgo.TrnTypeCredit,
							DtPosted: ofxgo.Date{Time: posted},
							TrnAmt:   makeOFXAmount(1000),
							FiTID:    ofxgo.String("t2"),
							Name:     ofxgo.String("Employer"),
						},
					},
				},
			},
		},
	}
	buf, err := resp.Marshal()
	require.NoError(t, err)
	return buf.Bytes()
}

func makeOFXAmount(f float64) ofxgo.Amount {
	var amount ofxgo.Amount
	amount.SetFloat64(f)
	return amount
}

func (e *testEnv) upload(t *testing.T, path string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if content != nil {
		part, err := writer.CreateFormFile(statementFileField, "statement.ofx")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func TestImportStatement(t *testing.T) {
	env := newTestEnv(t)
	ofx := testOFX(t)

	resp := env.upload(t, "/api/v1/journals/journal/statements/import", ofx)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result map[string]int
	decode(t, resp, &result)
	assert.Equal(t, map[string]int{"Statements": 1, "Added": 2, "Duplicates": 0}, result)

	resp = env.upload(t, "/api/v1/journals/journal/statements/import", ofx)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decode(t, resp, &result)
	assert.Equal(t, map[string]int{"Statements": 1, "Added": 0, "Duplicates": 2}, result)

	resp = env.do(t, http.MethodGet, "/api/v1/journals/journal/statements", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var lines []statement.Line
	decode(t, resp, &lines)
	require.Len(t, lines, 2)
	assert.Equal(t, "1234-1111-t1", lines[0].UniqueImportID)
	assert.Equal(t, "Grocer", lines[0].PaymentRef)
	assert.Equal(t, "-25.5", lines[0].Amount.String())
	assert.Equal(t, "USD", lines[0].Currency)
}

func TestImportStatementErrors(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		description string
		path        string
		content     []byte
		expectCode  int
	}{
		{
			description: "missing journal",
			path:        "/api/v1/journals/missing/statements/import",
			content:     testOFX(t),
			expectCode:  http.StatusNotFound,
		},
		{
			description: "missing file",
			path:        "/api/v1/journals/journal/statements/import",
			expectCode:  http.StatusBadRequest,
		},
		{
			description: "file too large",
			path:        "/api/v1/journals/journal/statements/import",
			content:     bytes.Repeat([]byte("a"), maxStatementSize+1),
			expectCode:  http.StatusRequestEntityTooLarge,
		},
		{
			description: "invalid file",
			path:        "/api/v1/journals/journal/statements/import",
			content:     []byte("not an OFX file"),
			expectCode:  http.StatusBadRequest,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			resp := env.upload(t, tc.path, tc.content)
			assert.Equal(t, tc.expectCode, resp.Code, resp.Body.String())
		})
	}
}

func TestReconciliationLine(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, "/api/v1/journals/journal/statements/import", testOFX(t))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.do(t, http.MethodGet, "/api/v1/journals/journal/reconciliation/lines/journal-2", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var view reconcile.LineView
	decode(t, resp, &view)
	assert.Equal(t, "journal-2", view.Line.ID)
	partner := view.Field(reconcile.PartnerField)
	require.NotNil(t, partner)
	assert.Equal(t, "Employer", partner.Placeholder)
	assert.Empty(t, partner.Value)

	resp = env.do(t, http.MethodGet, "/api/v1/journals/journal/reconciliation/lines/journal-99", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
