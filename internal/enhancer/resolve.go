package enhancer

import (
	"net/url"
	"strings"
)

// ResolveURL превращает ссылку из загруженной страницы в абсолютную,
// используя адрес страницы как базу. Абсолютные ссылки (с любой схемой,
// включая mailto:) возвращаются без изменений. Если базу или ссылку
// не удается разобрать, ссылка также возвращается как есть.
// Фрагмент ссылки переносится в результат байт в байт.
func ResolveURL(base, href string) string {
	refPart, fragment, hasFragment := strings.Cut(strings.TrimSpace(href), "#")
	ref, err := url.Parse(refPart)
	if err != nil || ref.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return href
	}
	resolved := baseURL.ResolveReference(ref)
	if !hasFragment {
		return resolved.String()
	}
	resolved.Fragment, resolved.RawFragment = "", ""
	return resolved.String() + "#" + fragment
}
