// Package assistant implements the conversational data-query engine: intent
// classification, SQL generation with bounded retries, presentation decisions,
// chart building and the event stream that ties them together.
package assistant

import (
	"fmt"
	"strings"

	"shop-assistant-go/internal/model"
)

func dialectLabel(dialect string) string {
	if dialect == "postgres" {
		return "PostgreSQL"
	}
	return "MySQL"
}

func dialectRules(dialect string) []string {
	if dialect == "postgres" {
		return []string{
			"Tablo ve sütun adlarını çift tırnak içinde yaz: \"Products\".\"UnitPrice\".",
			"Satır sınırlamak için LIMIT kullan.",
		}
	}
	return []string{
		"Tablo ve sütun adlarını ters tırnak içinde yaz: `Products`.`UnitPrice`.",
		"Satır sınırlamak için LIMIT kullan, TOP kullanma.",
	}
}

// BuildSystemInstruction renders the schema and the query-writing rules into the
// system instruction shared by every schema-aware completion call.
func BuildSystemInstruction(schema model.DatabaseSchema, dialect string) string {
	var sb strings.Builder
	sb.WriteString("Sen bir veritabanı uzmanı ve aynı zamanda kullanıcı dostu bir asistansın.\n")
	fmt.Fprintf(&sb, "Görevin, doğal dilde sorulan soruları anlayıp aşağıdaki şemaya göre %s sorguları üretmek ve sonuçları kullanıcıya açıklamaktır.\n", dialectLabel(dialect))

	sb.WriteString("\n--- KURALLAR ---\n")
	rules := []string{
		"YALNIZCA aşağıdaki 'VERİTABANI ŞEMASI' içinde bulunan tabloları ve sütunları kullan. Şemada olmayan bir ad tahmin etme.",
		"SQL istendiğinde yalnızca tek bir SELECT sorgusu yaz ve onu ```sql bloğu içine koy. Açıklama ekleme.",
		"Veriyi değiştiren (INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE) hiçbir komut yazma.",
		"Bir sorgu sonucunu açıklaman istendiğinde yalnızca kısa ve samimi bir giriş cümlesi yaz.",
		"Metinde '(tür ID: değer)' biçiminde bir ifade görürsen bunu doğrudan bir WHERE koşuluna çevir. Örnek: '(müşteri ID: 123)' -> WHERE CustomerId = 123.",
	}
	rules = append(rules, dialectRules(dialect)...)
	for i, r := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}

	sb.WriteString("\n--- VERİTABANI ŞEMASI ---\n")
	sb.WriteString("== Tablolar ==\n")
	for _, t := range schema.Tables {
		fmt.Fprintf(&sb, "- %s", t.Name)
		if t.Description != "" {
			fmt.Fprintf(&sb, ": %s", t.Description)
		}
		sb.WriteString("\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&sb, "  - %s (%s)", c.Name, c.DataType)
			if c.Description != "" {
				fmt.Fprintf(&sb, ": %s", c.Description)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n== İlişkiler (Foreign Keys) ==\n")
	for _, fk := range schema.ForeignKeys {
		fmt.Fprintf(&sb, "- %s.%s -> %s.%s\n", fk.Table, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
	}
	return sb.String()
}
