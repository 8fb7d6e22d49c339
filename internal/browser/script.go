package browser

import (
	"fmt"
	"strconv"
)

// interactiveSelector matches links, buttons, inputs and anything carrying an
// explicit interactive role.
const interactiveSelector = `a[href], button, input, select, textarea, [contenteditable="true"], ` +
	`[role="button"], [role="link"], [role="textbox"], [role="searchbox"], [role="checkbox"], ` +
	`[role="radio"], [role="combobox"], [role="menuitem"], [role="tab"], [role="option"], [role="switch"]`

const snapshotJS = `(() => {
	if (!document || !document.body || document.readyState === "loading") {
		return {ready: false};
	}
	const attr = %s;
	const limit = %d;
	document.querySelectorAll("[" + attr + "]").forEach(el => el.removeAttribute(attr));

	const implicitRole = el => {
		const tag = el.tagName.toLowerCase();
		const type = (el.getAttribute("type") || "").toLowerCase();
		switch (tag) {
		case "a": return "link";
		case "button": return "button";
		case "select": return "combobox";
		case "textarea": return "textbox";
		case "input":
			if (["button", "submit", "reset", "image"].includes(type)) return "button";
			if (type === "checkbox" || type === "radio") return type;
			if (type === "search") return "searchbox";
			return "textbox";
		}
		return el.isContentEditable ? "textbox" : tag;
	};
	const labelOf = el => {
		const aria = el.getAttribute("aria-label");
		if (aria && aria.trim()) return aria;
		const by = el.getAttribute("aria-labelledby");
		if (by) {
			const ref = document.getElementById(by);
			if (ref && ref.innerText.trim()) return ref.innerText;
		}
		if (el.labels && el.labels.length && el.labels[0].innerText.trim()) return el.labels[0].innerText;
		const tag = el.tagName.toLowerCase();
		if (tag === "input") {
			const type = (el.getAttribute("type") || "").toLowerCase();
			if (["button", "submit", "reset"].includes(type) && el.value) return el.value;
		} else if (tag !== "select" && tag !== "textarea" && el.innerText && el.innerText.trim()) {
			return el.innerText.slice(0, 120);
		}
		return el.getAttribute("title") || el.getAttribute("alt") || el.getAttribute("name") || "";
	};
	const visible = el => {
		const style = window.getComputedStyle(el);
		return style.display !== "none" && style.visibility !== "hidden" && el.getClientRects().length > 0;
	};

	const elements = [];
	let total = 0;
	for (const el of document.querySelectorAll(%s)) {
		if (el.tagName === "INPUT" && (el.getAttribute("type") || "").toLowerCase() === "hidden") continue;
		if (!visible(el)) continue;
		total++;
		if (elements.length >= limit) continue;
		el.setAttribute(attr, String(elements.length));
		elements.push({
			tag: el.tagName.toLowerCase(),
			role: el.getAttribute("role") || implicitRole(el),
			name: labelOf(el),
			id: el.id || "",
			type: el.getAttribute("type") || "",
			placeholder: el.getAttribute("placeholder") || "",
			disabled: !!el.disabled || el.getAttribute("aria-disabled") === "true",
		});
	}
	return {ready: true, url: location.href, title: document.title, total: total, elements: elements};
})()`

func snapshotScript(limit int) string {
	return fmt.Sprintf(snapshotJS, strconv.Quote(RefAttr), limit, strconv.Quote(interactiveSelector))
}
