package mesher

import "github.com/annel0/voxelcore/internal/world"

type maskCell struct {
	f  face
	ok bool
}

// greedy склеивает соседние грани с одинаковыми атрибутами в прямоугольники.
// Порядок обхода фиксирован: стороны в каноническом порядке, слои по возрастанию,
// внутри слоя строки по v, внутри строки по u.
func (b *builder) greedy() {
	var mask [world.ChunkSize][world.ChunkSize]maskCell // [u][v]

	for _, side := range world.Sides {
		axis, u, v := side.Axis(), uAxis[side], vAxis[side]

		for layer := 0; layer < world.ChunkSize; layer++ {
			for i := 0; i < world.ChunkSize; i++ {
				for j := 0; j < world.ChunkSize; j++ {
					var p [3]int
					p[axis], p[u], p[v] = layer, i, j
					f, ok := b.faceAt(p, side)
					mask[i][j] = maskCell{f: f, ok: ok}
				}
			}

			for j := 0; j < world.ChunkSize; j++ {
				for i := 0; i < world.ChunkSize; {
					cur := mask[i][j]
					if !cur.ok {
						i++
						continue
					}

					w := 1
					for i+w < world.ChunkSize && mask[i+w][j] == cur {
						w++
					}

					h := 1
				grow:
					for j+h < world.ChunkSize {
						for k := 0; k < w; k++ {
							if mask[i+k][j+h] != cur {
								break grow
							}
						}
						h++
					}

					b.emitQuad(side, layer, i, j, w, h, cur.f)
					for dv := 0; dv < h; dv++ {
						for du := 0; du < w; du++ {
							mask[i+du][j+dv] = maskCell{}
						}
					}
					i += w
				}
			}
		}
	}
}
