package loaders

import (
	"io"
	"os"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the per-vertex layout shared by the model buffers and the vertex shaders.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// ModelData is a triangle list. Identical vertices are stored once and referenced by index.
type ModelData struct {
	Vertices []Vertex
	Indices  []uint32
}

type ModelLoader struct{}

func (ml *ModelLoader) Load(path, name string) (*Resource, error) {
	data, err := LoadOBJ(path)
	if err != nil {
		return nil, err
	}
	size := uint64(len(data.Vertices))*uint64(unsafe.Sizeof(Vertex{})) + uint64(len(data.Indices))*4
	return newResource(name, path, ResourceTypeModel, size, data), nil
}

func (ml *ModelLoader) Unload(resource *Resource) error {
	if resource == nil {
		return errors.New("cannot unload a nil model resource")
	}
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// LoadOBJ reads a Wavefront OBJ file. A material library next to it with the same base
// name is parsed too, otherwise materials are ignored.
func LoadOBJ(path string) (*ModelData, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model %q", path)
	}
	defer meshFile.Close()

	var matReader io.Reader = strings.NewReader("")
	matFile, err := os.Open(strings.TrimSuffix(path, ".obj") + ".mtl")
	if err == nil {
		defer matFile.Close()
		matReader = matFile
	}

	data, err := DecodeOBJ(meshFile, matReader)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding model %q", path)
	}
	return data, nil
}

// DecodeOBJ triangulates every face as a fan and de-duplicates the resulting vertices.
// Vertices without normals or texture coordinates get zero values, colors default to white.
func DecodeOBJ(meshReader, matReader io.Reader) (*ModelData, error) {
	decoder, err := obj.DecodeReader(meshReader, matReader)
	if err != nil {
		return nil, err
	}

	data := &ModelData{}
	uniqueVertices := make(map[Vertex]uint32)
	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					vert, err := faceVertex(decoder, face, corner)
					if err != nil {
						return nil, err
					}
					index, ok := uniqueVertices[vert]
					if !ok {
						index = uint32(len(data.Vertices))
						data.Vertices = append(data.Vertices, vert)
						uniqueVertices[vert] = index
					}
					data.Indices = append(data.Indices, index)
				}
			}
		}
	}
	if len(data.Vertices) == 0 {
		return nil, errors.New("model has no faces")
	}
	return data, nil
}

func faceVertex(decoder *obj.Decoder, face obj.Face, corner int) (Vertex, error) {
	vert := Vertex{Color: mgl32.Vec3{1, 1, 1}}

	v := face.Vertices[corner]
	if v < 0 || v*3+2 >= len(decoder.Vertices) {
		return vert, errors.Newf("vertex index %d out of range", v)
	}
	vert.Position = mgl32.Vec3{decoder.Vertices[v*3], decoder.Vertices[v*3+1], decoder.Vertices[v*3+2]}

	// Missing normal and uv references are stored as out of range indices.
	if n := face.Normals[corner]; n >= 0 && n*3+2 < len(decoder.Normals) {
		vert.Normal = mgl32.Vec3{decoder.Normals[n*3], decoder.Normals[n*3+1], decoder.Normals[n*3+2]}
	}
	if uv := face.Uvs[corner]; uv >= 0 && uv*2+1 < len(decoder.Uvs) {
		vert.UV = mgl32.Vec2{decoder.Uvs[uv*2], decoder.Uvs[uv*2+1]}
	}
	return vert, nil
}
