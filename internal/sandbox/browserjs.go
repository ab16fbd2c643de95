package sandbox

import "strconv"

// Scripts evaluated in the page to snapshot content and tag interactive
// elements. Tagging writes a data-helmsman-id attribute so later clicks
// by index resolve against the same DOM snapshot.

const pageContentJS = `(() => {
	const title = document.title || '';
	const url = window.location.href;
	let text = document.body ? document.body.innerText : '';
	if (text.length > 10000) {
		text = text.substring(0, 10000) + '\n... (truncated)';
	}
	return '# ' + title + '\n\nURL: ' + url + '\n\n' + text;
})()`

const interactiveElementsJS = `(() => {
	const out = [];
	const viewportHeight = window.innerHeight;
	const viewportWidth = window.innerWidth;
	const elements = document.querySelectorAll(
		'button, a, input, textarea, select, [role="button"], [tabindex]:not([tabindex="-1"])');
	let idx = 0;
	for (let i = 0; i < elements.length; i++) {
		const el = elements[i];
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;
		if (rect.bottom < 0 || rect.top > viewportHeight ||
			rect.right < 0 || rect.left > viewportWidth) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;

		const tag = el.tagName.toLowerCase();
		let text = '';
		if (el.value && ['input', 'textarea', 'select'].includes(tag)) {
			text = el.value;
			if (el.placeholder) text = text + ' [Placeholder: ' + el.placeholder + ']';
		} else if (el.innerText) {
			text = el.innerText.trim().replace(/\s+/g, ' ');
		} else if (el.alt) {
			text = el.alt;
		} else if (el.title) {
			text = el.title;
		} else if (el.placeholder) {
			text = '[Placeholder: ' + el.placeholder + ']';
		} else if (el.type) {
			text = '[' + el.type + ']';
		} else {
			text = '[No text]';
		}
		if (text.length > 100) text = text.substring(0, 97) + '...';

		el.setAttribute('data-helmsman-id', 'element-' + idx);
		out.push({index: idx, tag: tag, text: text});
		idx++;
	}
	return out;
})()`

// indexSelector returns the CSS selector for an element tagged by the
// snapshot script.
func indexSelector(index int) string {
	return `[data-helmsman-id="element-` + strconv.Itoa(index) + `"]`
}
