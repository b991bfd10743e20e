package pipeline

import "github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"

// FallbackAnswer is returned whenever a query fails.
const FallbackAnswer = "Xin lỗi, hiện tại tôi chưa thể trả lời câu hỏi này. Vui lòng thử lại sau hoặc đặt câu hỏi cụ thể hơn."

// FallbackSuggestions accompany FallbackAnswer.
var FallbackSuggestions = []string{
	"Sản phẩm nào sắp hết hàng?",
	"Đơn hàng hôm nay thế nào?",
	"Khách hàng nào mua nhiều nhất?",
}

// Suggestions are follow-up queries offered after a successful answer.
var Suggestions = map[domain.Intent][]string{
	domain.IntentInventory: {"Sản phẩm nào sắp hết hàng?", "Tồn kho theo từng kho?", "Cần nhập thêm mặt hàng nào?"},
	domain.IntentProduct:   {"Giá bán của sản phẩm này?", "Sản phẩm này còn bao nhiêu trong kho?", "Sản phẩm nào bán chạy nhất?"},
	domain.IntentOrder:     {"Đơn hàng nào đang chờ xử lý?", "Đơn hàng hôm nay thế nào?", "Tổng giá trị đơn hàng tuần này?"},
	domain.IntentCustomer:  {"Khách hàng nào mua nhiều nhất?", "Đơn hàng gần đây của khách hàng này?", "Khách hàng VIP gồm những ai?"},
	domain.IntentSupplier:  {"Nhà cung cấp nào cung cấp nhiều sản phẩm nhất?", "Sản phẩm của nhà cung cấp này?"},
	domain.IntentPrice:     {"Bảng giá sỉ hiện tại?", "Giá nhập so với giá bán?"},
	domain.IntentWarehouse: {"Kho nào còn nhiều chỗ trống?", "Tồn kho theo từng kho?"},
	domain.IntentReport:    {"Doanh thu tuần này?", "Top sản phẩm bán chạy?", "Khách hàng mới trong tháng?"},
	domain.IntentGeneral:   FallbackSuggestions,
}

// SuggestionsFor returns a copy of the suggestions for in.
func SuggestionsFor(in domain.Intent) []string {
	s, ok := Suggestions[in]
	if !ok {
		s = FallbackSuggestions
	}
	return append([]string(nil), s...)
}
