package browser

// runtimeJS installs window.__prefixhider in the page. Nodes are addressed by ids
// unique across reloads; elements also carry them as data-prefixhider-id. Mutation
// records are classified in the page, while removed subtrees are still reachable,
// and buffered until drained. A drain also drops references to released ids whose
// nodes are detached.
const runtimeJS = `() => {
	if (window.__prefixhider) return true;
	const ATTR = 'data-prefixhider-id';
	const epoch = Date.now().toString(36) + Math.random().toString(36).slice(2, 8);
	let next = 1;
	const refs = new Map();

	const idOf = (n) => {
		if (!n) return '';
		if (!n.__prefixhiderId) {
			n.__prefixhiderId = epoch + ':' + (next++);
			if (n.nodeType === 1) n.setAttribute(ATTR, n.__prefixhiderId);
		}
		if (!refs.has(n.__prefixhiderId)) refs.set(n.__prefixhiderId, new WeakRef(n));
		return n.__prefixhiderId;
	};
	const get = (id) => {
		const ref = refs.get(id);
		const n = ref && ref.deref();
		if (!n) refs.delete(id);
		return n || null;
	};
	const within = (n, sel) => {
		const out = [];
		if (!n || n.nodeType !== 1) return out;
		if (n.matches(sel)) out.push(idOf(n));
		n.querySelectorAll(sel).forEach((el) => out.push(idOf(el)));
		return out;
	};
	const ownerOf = (n, sel) => {
		const el = n && (n.nodeType === 1 ? n : n.parentElement);
		const owner = el && el.closest(sel);
		return owner ? idOf(owner) : '';
	};

	let observer = null;
	let buffer = [];

	window.__prefixhider = {
		query: (sel) => Array.from(document.querySelectorAll(sel), idOf),
		within: (id, sel) => within(get(id), sel),
		connected: (id) => {
			const n = get(id);
			return !!(n && n.isConnected);
		},
		text: (id) => {
			const n = get(id);
			if (!n) throw new Error('unknown node ' + id);
			return n.textContent || '';
		},
		setText: (id, text) => {
			const n = get(id);
			if (!n || !n.isConnected) throw new Error('node ' + id + ' is detached');
			n.textContent = text;
			return true;
		},
		observe: (ids, labelSel) => {
			if (observer) observer.disconnect();
			buffer = [];
			observer = new MutationObserver((records) => {
				buffer.push(records.map((r) => r.type === 'characterData'
					? { kind: 'text', owner: ownerOf(r.target, labelSel) }
					: {
						kind: 'childList',
						added: Array.from(r.addedNodes, (n) => within(n, labelSel)),
						removed: Array.from(r.removedNodes, (n) => within(n, labelSel)),
					}));
			});
			ids.forEach((id) => {
				const n = get(id);
				if (n) observer.observe(n, { childList: true, characterData: true, subtree: true });
			});
			return true;
		},
		disconnect: () => {
			if (observer) observer.disconnect();
			observer = null;
			buffer = [];
			return true;
		},
		drain: (released) => {
			(released || []).forEach((id) => {
				const n = get(id);
				if (!n || !n.isConnected) refs.delete(id);
			});
			const batches = buffer;
			buffer = [];
			return { live: observer !== null, batches };
		},
	};
	return true;
}`
