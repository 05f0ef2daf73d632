// synergy-platform/internal/verify/gemini.go
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"synergy-platform/models"
)

// GeminiExtractor извлекает данные из подтверждений через Gemini.
// Любой сбой — сетевой, пустой ответ, неразбираемый JSON — возвращается как
// ExtractionError, решение об отказе принимает Workflow.
type GeminiExtractor struct {
	Model *genai.GenerativeModel
}

// Extract отправляет подтверждение с форензик-промптом и разбирает JSON-ответ.
func (g *GeminiExtractor) Extract(ctx context.Context, ev Evidence, plan models.TargetRecord, paymentMethod string) (Extraction, error) {
	if g.Model == nil {
		return Extraction{}, &ExtractionError{Err: fmt.Errorf("gemini client is not configured")}
	}

	mime := ev.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	prompt := []genai.Part{
		genai.Text(forensicPrompt(plan, paymentMethod)),
		&genai.Blob{MIMEType: mime, Data: ev.Data},
	}

	resp, err := g.Model.GenerateContent(ctx, prompt...)
	if err != nil {
		return Extraction{}, &ExtractionError{Err: err}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Extraction{}, &ExtractionError{Err: fmt.Errorf("gemini returned no result")}
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return Extraction{}, &ExtractionError{Err: fmt.Errorf("gemini response is not text")}
	}

	cleanJSON := strings.Trim(string(text), "```json \n")
	var ex Extraction
	if err := json.Unmarshal([]byte(cleanJSON), &ex); err != nil {
		return Extraction{}, &ExtractionError{Err: fmt.Errorf("parse gemini response: %w", err)}
	}
	return ex, nil
}

// forensicPrompt строит промпт аудита чека под конкретную запись плана.
// Для долларовых планов сумма извлекается как есть, для сумовых применяется
// привычная врачам скоропись: "100" при ожидаемых ~100 000 значит 100 000.
func forensicPrompt(plan models.TargetRecord, paymentMethod string) string {
	mode := "Card/Click"
	if isCash(paymentMethod) {
		mode = "Cash/Paper"
	}
	currency := "UZS (So'm)"
	amountRule := fmt.Sprintf(
		"AMOUNT (UZS): doctors write shorthand. If a small number is found (e.g. \"100\", \"3000\"), "+
			"multiply by 1000 when that lands near the expected amount %d; if the number is dollars shorthand, "+
			"multiply by 12000 when that lands near the expected amount. Always return the final UZS value.",
		plan.TargetAmount)
	if t := strings.ToLower(plan.PlannedType); strings.Contains(t, "dollar") || strings.Contains(t, "usd") {
		currency = "USD (Dollars)"
		amountRule = "AMOUNT (USD): extract the exact number written. Do NOT multiply by 1000, do NOT treat as thousands."
	}
	return fmt.Sprintf(`ROLE: Senior Forensic Auditor. Verify this Uzbek payment receipt.

CONTEXT:
- Expected Doctor Name: %q
- Expected Phone: %q
- Expected Amount: %d
- Payment Mode: %s
- Expected Currency: %s
- Expected Month: %s (%d)

RULES:
1. PHONE: extract all readable digits near "Телефон:"/"Tel:", and the last 4 readable digits separately.
2. IDENTITY: match full phone (last 9 digits), else last 4 digits, else fuzzy name (Latin/Cyrillic interchangeable). Any match -> identity_match = true.
3. DATE: be extremely lenient with handwriting. Only report has_complete_date = false when the date lines are completely blank. If the month is messy or ambiguous, assume it matches %d.
4. AUTHENTICITY: for Cash/Paper look for a signature near "Imzo"/"Подпись" or an ink stamp; either one suffices. For Card/Click set both true.
5. %s
6. TRANSACTION ID: extract the receipt/check number if present ("ID транзакции", "Чек №").

OUTPUT STRICTLY AS JSON, no markdown:
{"extracted_name": "", "extracted_phone": "", "extracted_phone_last4": "", "extracted_amount": 0, "extracted_month": %d, "extracted_transaction_id": "", "has_complete_date": true, "has_signature": true, "has_stamp": true, "is_authentic": true, "identity_match": true, "confidence": 0.0, "reason": ""}`,
		plan.DoctorName, plan.Phone, plan.TargetAmount, mode, currency,
		monthName(plan.Month), plan.Month, plan.Month, amountRule, plan.Month)
}
