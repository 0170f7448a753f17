package portal

// Header sets mirror what a desktop browser sends on each kind of request.
// The bot-mitigation layer scores header completeness, so these are fuller
// than the client strictly needs.

const desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// pageHeaders is the header set for human-navigable page loads (login page,
// warm-up pages)
func pageHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = desktopUserAgent
	}
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-GB,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
	}
}

// loginSubmitHeaders is the header set for the credential POST
func loginSubmitHeaders(userAgent, loginURL, origin string) map[string]string {
	if userAgent == "" {
		userAgent = desktopUserAgent
	}
	return map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"User-Agent":   userAgent,
		"Referer":      loginURL,
		"Origin":       origin,
	}
}

// apiHeaders is the header set for the JSON-RPC style directory calls, shaped
// like the browser's same-origin AJAX requests
func apiHeaders(userAgent, origin, referer string) map[string]string {
	if userAgent == "" {
		userAgent = desktopUserAgent
	}
	return map[string]string{
		"Accept":           "*/*",
		"Accept-Language":  "en-GB,en;q=0.5",
		"Content-Type":     "application/json",
		"Origin":           origin,
		"Referer":          referer,
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"User-Agent":       userAgent,
		"X-Requested-With": "XMLHttpRequest",
	}
}

// photoHeaders is the header set for image downloads
func photoHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = desktopUserAgent
	}
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "image/webp,*/*",
	}
}
