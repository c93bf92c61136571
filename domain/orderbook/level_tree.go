package orderbook

type color uint8

const (
	red   color = 0
	black color = 1
)

type node struct {
	price  Price
	qty    Quantity
	color  color
	left   *node
	right  *node
	parent *node
}

// levelTree is a red-black tree mapping Price to Quantity, ordered by
// price ascending. Removed nodes are kept on a free list (threaded through
// left) so a steady-state book does not allocate.
type levelTree struct {
	root *node
	nil  *node // sentinel (black)
	size int
	free *node
}

func newLevelTree() *levelTree {
	nilNode := &node{color: black}
	return &levelTree{root: nilNode, nil: nilNode}
}

func (t *levelTree) Len() int { return t.size }

func (t *levelTree) Get(price Price) (Quantity, bool) {
	n := t.search(price)
	if n == t.nil {
		return 0, false
	}
	return n.qty, true
}

// Put inserts or overwrites the level at price. It reports whether a new
// level was created.
func (t *levelTree) Put(price Price, qty Quantity) bool {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if price < x.price {
			x = x.left
		} else if price > x.price {
			x = x.right
		} else {
			x.qty = qty
			return false
		}
	}

	z := t.alloc(price, qty, y)
	if y == t.nil {
		t.root = z
	} else if z.price < y.price {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return true
}

// Delete removes the level at price, if present.
func (t *levelTree) Delete(price Price) bool {
	z := t.search(price)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	t.release(z)
	return true
}

func (t *levelTree) Min() (Level, bool) {
	n := t.minNode(t.root)
	if n == t.nil {
		return Level{}, false
	}
	return Level{Price: n.price, Qty: n.qty}, true
}

func (t *levelTree) Max() (Level, bool) {
	n := t.maxNode(t.root)
	if n == t.nil {
		return Level{}, false
	}
	return Level{Price: n.price, Qty: n.qty}, true
}

func (t *levelTree) Ascend(fn func(Level) bool) {
	for n := t.minNode(t.root); n != t.nil; n = t.next(n) {
		if !fn(Level{Price: n.price, Qty: n.qty}) {
			return
		}
	}
}

func (t *levelTree) Descend(fn func(Level) bool) {
	for n := t.maxNode(t.root); n != t.nil; n = t.prev(n) {
		if !fn(Level{Price: n.price, Qty: n.qty}) {
			return
		}
	}
}

// Clear empties the tree and recycles every node.
func (t *levelTree) Clear() {
	n := t.minNode(t.root)
	for n != t.nil {
		// next() only walks up through right/parent links of visited
		// nodes, so threading the free list through left is safe here.
		nx := t.next(n)
		t.release(n)
		n = nx
	}
	t.root = t.nil
	t.size = 0
}

/******************** Internal helpers ********************/

func (t *levelTree) alloc(price Price, qty Quantity, parent *node) *node {
	n := t.free
	if n != nil {
		t.free = n.left
	} else {
		n = &node{}
	}
	*n = node{
		price:  price,
		qty:    qty,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: parent,
	}
	return n
}

func (t *levelTree) release(n *node) {
	n.left = t.free
	t.free = n
}

func (t *levelTree) search(price Price) *node {
	n := t.root
	for n != t.nil {
		if price < n.price {
			n = n.left
		} else if price > n.price {
			n = n.right
		} else {
			return n
		}
	}
	return t.nil
}

func (t *levelTree) minNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *levelTree) maxNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *levelTree) next(n *node) *node {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *levelTree) prev(n *node) *node {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *levelTree) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *levelTree) rightRotate(y *node) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *levelTree) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *levelTree) transplant(u, v *node) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *levelTree) deleteNode(z *node) {
	y := z
	yOrigColor := y.color
	var x *node

	if z.left == t.nil {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *levelTree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}
