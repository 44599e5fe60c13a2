package invoice

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("saves, reads and deletes files", func() {
		name, err := storage.Save("a1_factura.pdf", []byte("%PDF"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("a1_factura.pdf"))
		Expect(filepath.Join(tmpDir, "uploads", name)).To(BeARegularFile())

		data, err := storage.Get(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("%PDF")))

		Expect(storage.Delete(name)).To(Succeed())
		_, err = storage.Get(name)
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	DescribeTable("rejects names outside the directory",
		func(name string) {
			_, err := storage.Save(name, []byte("x"))
			Expect(err).To(HaveOccurred())
			_, err = storage.Get(name)
			Expect(err).To(HaveOccurred())
			Expect(storage.Delete(name)).NotTo(Succeed())
		},
		Entry("empty", ""),
		Entry("parent", "../escape.txt"),
		Entry("nested", "dir/file.txt"),
	)

	It("fails to delete missing files", func() {
		Expect(storage.Delete("missing.jpg")).To(HaveOccurred())
	})
})
