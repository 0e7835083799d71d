package assistant

import (
	"fmt"
	"strings"
)

// User-facing texts. The admin frontend is Turkish.
const (
	tableToken = "tablo"

	defaultChartTitle       = "Grafik"
	defaultTableExplanation = "İsteğiniz doğrultusunda bulunan sonuçlar aşağıdadır:"

	queryFailedExplanation        = "Üzgünüm, isteğinizi işlerken bir sorunla karşılaştım. Yapay zeka sorguyu düzeltmeye çalıştı ancak başarılı olamadı."
	presentationFailedExplanation = "Üzgünüm, veriyi sunum için hazırlarken bir sorun oluştu."
	emptyQueryError               = "model boş sorgu üretti"
)

func chartExplanation(displayName string) string {
	return fmt.Sprintf("İsteğiniz doğrultusunda hazırlanan '%s' aşağıdadır:", displayName)
}

func queryFailedDetail(lastErr, lastSQL string) string {
	detail := fmt.Sprintf("Son hata: %s.", lastErr)
	if lastSQL != "" {
		detail += fmt.Sprintf(" Son denenen sorgu: %s.", lastSQL)
	}
	return detail + " Lütfen isteğinizi farklı bir şekilde ifade etmeyi deneyin."
}

func presentationFailedDetail(err error) string {
	return fmt.Sprintf("Detay: %v. Yapay zeka geçerli bir format üretememiş olabilir.", err)
}

func classificationPrompt(userPrompt string) string {
	return `Görevin, kullanıcının isteğinin mağaza veritabanından veri okumayı gerektirip gerektirmediğine karar vermek.

# KAPSAM
- VERİ GEREKTİREN: mağazanın ürünleri, kategorileri, müşterileri, siparişleri, satışları, giderleri, yorumları veya stokları hakkında somut veri isteyen sorular.
- VERİ GEREKTİRMEYEN: selamlaşma, teşekkür, sohbet geçmişi hakkında sorular, genel kültür, kod yazma veya yaratıcı metin gibi mağaza verisine dokunmayan her şey.

# ÖRNEKLER
Kullanıcı: 'En çok satan 5 ürünü listele'
Cevap: Evet

Kullanıcı: 'Geçen ay hangi kategoride kaç sipariş var?'
Cevap: Evet

Kullanıcı: 'Merhaba, nasılsın?'
Cevap: Hayır

Kullanıcı: 'Go ile basit bir HTTP sunucusu yazar mısın?'
Cevap: Hayır

Kullanıcı: 'Türkiye'nin başkenti neresidir?'
Cevap: Hayır

Kullanıcı: 'Az önceki cevabını özetler misin?'
Cevap: Hayır

# GÖREV
Aşağıdaki isteği sınıflandır. Yalnızca 'Evet' veya 'Hayır' yaz.
Kullanıcı: '` + userPrompt + `'
Cevap:`
}

func firstAttemptPrompt(userPrompt, dialect string) string {
	return fmt.Sprintf("Kullanıcının son isteği: '%s'. Bu isteğe uygun %s sorgusunu oluştur.", userPrompt, dialectLabel(dialect))
}

func retryPrompt(lastErr string) string {
	return fmt.Sprintf("Bu sorgu başarısız oldu. Hata: '%s'. Lütfen SADECE sana verilen veritabanı şemasındaki tabloları ve sütunları kullanarak sorguyu düzelt ve tekrar yaz.", lastErr)
}

func presentationPrompt(question, rowsJSON string) string {
	return fmt.Sprintf(`GÖREV: Kullanıcının isteğine ve JSON verisine göre en uygun sunum formatını seç.
İSTEK: "%s"
VERİ: "%s"
SEÇENEKLER: %s | %s
KURALLAR:
1. Yanıtın yalnızca 'FORMAT: <seçim>' biçiminde olmalı.
2. Açıklama veya gerekçe ekleme.
3. Veride tek satır varsa ya da veri karşılaştırmaya uygun değilse 'tablo' seç.
ÖRNEK ÇIKTI: FORMAT: tablo`, question, rowsJSON, tableToken, strings.Join(allChartKeywords(), " | "))
}

func simplificationPrompt(question, rowsJSON string) string {
	return fmt.Sprintf(`Kullanıcının isteği: '%s'
Bu isteğe karşılık veritabanından şu ham JSON verisi alındı: %s

GÖREV: Veriyi kullanıcıya sunmak için sadeleştir.
1. Soruyla en ilgili sütunları seç.
2. 'Id', 'Guid', 'Password', 'IsDeleted', 'IsActive' gibi teknik veya hassas sütunları çıkar.
3. Seçtiğin sütun adlarını anlaşılır Türkçe başlıklara çevir.
4. Her eşleşmeyi ayrı bir satıra yaz ve başka hiçbir şey ekleme.

FORMAT:
OrijinalSutunAdi:Kullanıcı Dostu Ad

ÖRNEK ÇIKTI:
Name:Ürün Adı
UnitPrice:Birim Fiyatı`, question, rowsJSON)
}

func chartPrompt(question, rowsJSON, kind string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Kullanıcının isteği: '%s'.\n", question)
	fmt.Fprintf(&sb, "Veri: %s.\n", rowsJSON)
	fmt.Fprintf(&sb, "Bu veriyi bir '%s' grafiği için analiz et.\n", kind)
	sb.WriteString("GÖREV: Grafiğin etiketlerini ve değerlerini aşağıdaki formatta, her öğeyi ayrı satıra yazarak döndür.\n")
	sb.WriteString("--- FORMAT ---\n")
	sb.WriteString("TITLE:Grafik Başlığı\n")
	sb.WriteString("LABEL:Etiket1,Etiket2,Etiket3\n")
	sb.WriteString("DATA:Değer1,Değer2,Değer3\n")
	sb.WriteString("--- KURALLAR ---\n")
	sb.WriteString("1. Yalnızca bu formatı kullan.\n")
	sb.WriteString("2. Etiket sayısı ile değer sayısı eşit olmalı.\n")
	sb.WriteString("3. Sayılarda binlik ayırıcı kullanma, ondalık ayırıcı nokta (.) olsun.\n")
	sb.WriteString("--- ÖRNEK ÇIKTI ---\n")
	sb.WriteString("TITLE:Kategorilere Göre Ürün Sayısı\n")
	sb.WriteString("LABEL:Elektronik,Giyim,Kozmetik\n")
	sb.WriteString("DATA:15,32,8\n")
	return sb.String()
}

func explanationPrompt(question, rowsJSON string) string {
	return fmt.Sprintf("Veri: '%s'. Kullanıcı isteği: '%s'. Bu veriyi özetleyen kısa ve samimi bir giriş cümlesi yaz.", rowsJSON, question)
}
