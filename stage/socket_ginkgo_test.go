package stage_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quietloop/vaultpipe/stage"
)

var _ = Describe("Socket", func() {
	It("round-trips bytes over a Unix stream socket", func() {
		path := filepath.Join(GinkgoT().TempDir(), "vaultpipe.sock")

		server := stage.NewUnixSocket(path, true)
		Expect(server.Listen(1)).To(Succeed())
		defer server.Release()

		accepted := make(chan *stage.Socket, 1)
		acceptErr := make(chan error, 1)
		go func() {
			conn, err := server.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			accepted <- conn
		}()

		client := stage.NewUnixSocket(path, false)
		Expect(client.Open()).To(Succeed())
		defer client.Close()

		var serverSide *stage.Socket
		Eventually(accepted).Should(Receive(&serverSide))
		Expect(acceptErr).NotTo(Receive())
		defer serverSide.Close()

		payload := []byte("I am not a stupid protocol!")
		n, err := client.Put(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(payload)))

		got := make([]byte, len(payload))
		n, err = serverSide.Get(got)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(payload)))
		Expect(got).To(Equal(payload))
	})
})
