// Package chat implements the keyword-matched advisory responder.
//
// There is no language understanding here: the message is lowercased
// and scanned against ordered keyword groups, first matching group
// wins. Messages that match nothing get one of a small set of fallback
// prompts, chosen by a pluggable randomness source so tests can pin the
// choice.
package chat

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

type topic struct {
	keywords []string
	response string
}

// topics are evaluated in order; the first group containing any keyword
// of the message wins.
var topics = []topic{
	{
		keywords: []string{"健康險", "醫療險", "醫療"},
		response: "健康險是最重要的基礎保障！我推薦考慮以下幾點：\n\n• 住院醫療：建議日額2000-3000元\n• 手術費用：至少10-15萬保額\n• 重大疾病：建議50-100萬一次給付\n\n我們有「保誠富御守護」和「台灣人壽新康健」等優質選擇。",
	},
	{
		keywords: []string{"壽險", "生命保險", "身故"},
		response: "壽險主要提供身故保障，適合有家庭責任的人：\n\n• 建議保額：年收入的10-15倍\n• 分紅型：可參與公司盈餘分配\n• 定期型：保費便宜，保障高\n\n「保誠美滿人生」是不錯的分紅型選擇。",
	},
	{
		keywords: []string{"意外險", "意外", "職業傷害"},
		response: "意外險CP值最高！特色包括：\n\n• 保費便宜：通常月繳1000元內\n• 保障高：可達百萬以上\n• 24小時保障：不分時間地點\n• 職業加成：特定職業有額外保障\n\n推薦「保誠安心意外險」，性價比極佳！",
	},
	{
		keywords: []string{"保費", "價格", "多少錢", "費用"},
		response: "保費計算有幾個重要因素：\n\n• 年齡：越年輕保費越便宜\n• 性別：通常女性保費較低\n• 保額：保障越高保費越貴\n• 健康狀況：影響核保結果\n\n建議保險總支出控制在月收入10-15%。需要我幫您試算嗎？",
	},
	{
		keywords: []string{"推薦", "建議", "適合", "選擇"},
		response: "為您推薦最適合的保險，我需要了解：\n\n• 您的年齡和職業\n• 月收入範圍\n• 家庭狀況（單身/已婚/有小孩）\n• 最關心的保障需求\n\n請先填寫「推薦保單」頁面的基本資料，我會為您量身推薦！",
	},
	{
		keywords: []string{"理賠", "申請", "給付"},
		response: "理賠流程簡單明確：\n\n1. 立即通報：事故發生後盡快聯絡保險公司\n2. 準備文件：診斷證明、收據、申請書等\n3. 送件審核：可線上或臨櫃辦理\n4. 快速給付：一般3-7個工作天\n\n我們致力於提供快速、透明的理賠服務！",
	},
	{
		keywords: []string{"年輕人", "年輕", "新鮮人", "20", "30"},
		response: "年輕人保險規劃建議：\n\n• 優先順序：意外險 → 健康險 → 壽險\n• 預算控制：月收入8-12%\n• 保障重點：醫療和意外為主\n• 投保優勢：保費便宜、核保容易\n\n推薦組合：意外險(800元) + 醫療險(3000元) = 月繳不到4000元！",
	},
	{
		keywords: []string{"家庭", "小孩", "子女", "教育"},
		response: "家庭保障規劃重點：\n\n• 雙薪家庭：夫妻都要有足夠保障\n• 主要收入者：壽險保額要充足\n• 子女保障：意外險和醫療險\n• 教育基金：可考慮儲蓄險或投資型保險\n\n家庭責任重大，建議找專業顧問詳細規劃！",
	},
}

var fallbacks = []string{
	"我是您的專屬保險智能顧問！我可以幫您：\n\n• 推薦適合的保險商品\n• 進行個人風險評估\n• 解答保險相關問題\n• 協助保險規劃\n\n有什麼想了解的嗎？",
	"歡迎諮詢保險相關問題！您可以問我：\n\n• 「健康險怎麼選？」\n• 「年輕人需要什麼保險？」\n• 「保費大概多少？」\n• 「意外險有什麼好處？」",
	"我擁有豐富的保險知識，可以為您解答任何問題。建議您先完成「推薦保單」的需求分析，我會為您提供個人化建議！",
}

// Responder answers free-text messages by keyword lookup.
type Responder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a responder. rng may be nil, in which case a time-seeded
// source is used.
func New(rng *rand.Rand) *Responder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Responder{rng: rng}
}

// Reply returns the canned response for the first matching keyword
// group, or a fallback prompt when nothing matches.
func (r *Responder) Reply(message string) string {
	msg := strings.ToLower(message)

	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(msg, kw) {
				return t.response
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return fallbacks[r.rng.Intn(len(fallbacks))]
}
