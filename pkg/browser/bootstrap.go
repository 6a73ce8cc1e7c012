package browser

// bootstrapJS installs window.__nxe in the page. It tags every element with a
// data-nxe-ref, queues DOM mutations and user interactions for drain(), and replays the
// edits made on the mirror through apply().
const bootstrapJS = `(function () {
  if (window.__nxe) { return; }
  var REF = 'data-nxe-ref', ACTION = 'data-nxe-action', INPUT = 'data-nxe-input';
  var seq = 0, records = [], events = [];

  function tag(el) {
    if (el.nodeType !== 1) { return; }
    if (!el.hasAttribute(REF)) { el.setAttribute(REF, 'p' + (++seq)); }
    for (var c = el.firstElementChild; c; c = c.nextElementSibling) { tag(c); }
  }
  function byRef(ref) {
    return ref ? document.querySelector('[' + REF + '="' + ref + '"]') : null;
  }
  function nextElementRef(node) {
    for (var n = node.nextSibling; n; n = n.nextSibling) {
      if (n.nodeType === 1 && n.hasAttribute(REF)) { return n.getAttribute(REF); }
    }
    return '';
  }
  function borders(root) {
    if (root.nodeType !== 1) { return; }
    var rows = root.matches('.list-group-item, .row') ? [root] : [];
    rows = rows.concat(Array.prototype.slice.call(root.querySelectorAll('.list-group-item, .row')));
    rows.forEach(function (row) {
      var color = getComputedStyle(row).borderLeftColor;
      if (color && row.getAttribute('data-nxe-border') !== color) { row.setAttribute('data-nxe-border', color); }
    });
  }

  function collect(mutations) {
    var inner = new Set();
    mutations.forEach(function (m) {
      if (m.type === 'attributes') {
        if (m.attributeName === REF || m.target.nodeType !== 1) { return; }
        records.push({ type: 'attr', ref: m.target.getAttribute(REF) || '', name: m.attributeName,
          value: m.target.getAttribute(m.attributeName) });
        return;
      }
      if (m.type === 'characterData') {
        if (m.target.parentElement) { inner.add(m.target.parentElement); }
        return;
      }
      m.removedNodes.forEach(function (n) {
        if (n.nodeType === 1 && n.hasAttribute(REF)) {
          records.push({ type: 'remove', ref: n.getAttribute(REF) });
        } else if (n.nodeType === 3) {
          inner.add(m.target);
        }
      });
      m.addedNodes.forEach(function (n) {
        if (n.nodeType === 3) { inner.add(m.target); return; }
        if (n.nodeType !== 1 || !n.isConnected) { return; }
        tag(m.target);
        tag(n);
        borders(n);
        records.push({ type: 'add', parent: m.target.getAttribute(REF), before: nextElementRef(n), html: n.outerHTML });
      });
    });
    inner.forEach(function (el) {
      if (!el.isConnected) { return; }
      tag(el);
      records.push({ type: 'inner', ref: el.getAttribute(REF), html: el.innerHTML });
    });
  }

  var observer = new MutationObserver(collect);
  var watched = { childList: true, subtree: true, attributes: true, characterData: true };

  function push(el, extra) {
    var ev = { ref: el.getAttribute(REF), action: el.getAttribute(ACTION) };
    for (var k in extra) { ev[k] = extra[k]; }
    events.push(ev);
  }

  document.addEventListener('click', function (e) {
    var el = e.target.closest && e.target.closest('[' + ACTION + ']');
    if (!el || el.tagName === 'INPUT') { return; }
    if (el.tagName === 'BUTTON') { e.preventDefault(); }
    var value = '';
    var source = byRef(el.getAttribute(INPUT));
    if (source) { value = source.value; }
    push(el, { value: value });
  }, true);

  document.addEventListener('change', function (e) {
    var el = e.target;
    if (!el.hasAttribute || !el.hasAttribute(ACTION)) { return; }
    if (el.type === 'file') {
      var file = el.files && el.files[0];
      if (!file) { return; }
      var reader = new FileReader();
      reader.onload = function () { push(el, { value: String(reader.result) }); el.value = ''; };
      reader.readAsText(file);
      return;
    }
    if (el.type === 'checkbox') { push(el, { checked: el.checked }); return; }
    push(el, { value: el.value });
  }, true);

  document.addEventListener('input', function (e) {
    var el = e.target;
    if (el.tagName === 'INPUT' && el.type === 'text' && el.hasAttribute(ACTION)) { push(el, { value: el.value }); }
  }, true);

  var style = document.createElement('style');
  style.textContent =
    '.nxe-log-row:hover .nxe-btn-group{opacity:1!important;visibility:visible!important}' +
    '.tooltipParent:hover .customTooltip{opacity:1!important;visibility:visible!important}' +
    '.form-check:hover .customTooltip{opacity:1!important;visibility:visible!important}' +
    '.list-group-item:hover .description,.description:focus{display:block!important}';

  window.__nxe = {
    snapshot: function () {
      observer.disconnect();
      if (!style.isConnected) { document.head.appendChild(style); }
      tag(document.documentElement);
      borders(document.documentElement);
      records = [];
      observer.observe(document.documentElement, watched);
      return '<!DOCTYPE html>' + document.documentElement.outerHTML;
    },
    drain: function () {
      collect(observer.takeRecords());
      var out = { location: location.href, records: records, events: events };
      records = [];
      events = [];
      return out;
    },
    apply: function (effects) {
      collect(observer.takeRecords());
      observer.disconnect();
      var missed = 0;
      effects.forEach(function (fx) {
        var el = byRef(fx.ref);
        switch (fx.op) {
        case 'attr':
          if (el) { el.setAttribute(fx.name, fx.value || ''); } else { missed++; }
          break;
        case 'removeAttr':
          if (el) { el.removeAttribute(fx.name); } else { missed++; }
          break;
        case 'prop':
          if (!el) { missed++; break; }
          if (fx.name === 'checked' || fx.name === 'disabled') { el[fx.name] = fx.value === 'true'; }
          else { el[fx.name] = fx.value || ''; }
          break;
        case 'text':
          if (el) { el.textContent = fx.value || ''; } else { missed++; }
          break;
        case 'insert':
          var parent = byRef(fx.parent);
          if (!parent) { missed++; break; }
          var tmpl = document.createElement('template');
          tmpl.innerHTML = fx.html || '';
          var before = byRef(fx.before);
          parent.insertBefore(tmpl.content, before && before.parentNode === parent ? before : null);
          break;
        case 'move':
          var target = byRef(fx.parent);
          if (!el || !target) { missed++; break; }
          var anchor = byRef(fx.before);
          target.insertBefore(el, anchor && anchor.parentNode === target ? anchor : null);
          break;
        case 'remove':
          if (el) { el.remove(); }
          break;
        }
      });
      observer.observe(document.documentElement, watched);
      return missed;
    }
  };
})();`

const (
	presenceJS = `typeof window.__nxe === 'object'`
	snapshotJS = `window.__nxe.snapshot()`
	drainJS    = `(window.__nxe ? window.__nxe.drain() : null)`
	locationJS = `location.href`
	reloadJS   = `location.reload()`
)
