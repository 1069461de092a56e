package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lysco/checkout-backend/api"
	"github.com/lysco/checkout-backend/billing"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/db"
	"github.com/lysco/checkout-backend/db/postgres"
	"github.com/lysco/checkout-backend/invoice"
	"github.com/lysco/checkout-backend/notifications"
	"github.com/lysco/checkout-backend/notifications/mailtemplates"
	"github.com/lysco/checkout-backend/notifications/queue"
	"github.com/lysco/checkout-backend/notifications/sendgrid"
	"github.com/lysco/checkout-backend/notifications/smtp"
	"github.com/lysco/checkout-backend/objectstorage"
	"github.com/lysco/checkout-backend/stripe"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// a .env file is optional, the environment wins over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(err)
	}
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.String("stripe-key", "", "Stripe secret API key")
	flag.StringSlice("stripe-tiers", nil, "engagement tiers as name:engagementPrice:standardPrice")
	flag.String("stripe-currency", stripe.DefaultCurrency, "currency of the payment intents")
	flag.String("stripe-locale", stripe.DefaultLocale, "preferred locale of the customers")
	flag.String("portal-return-url", "", "default return URL of the billing portal")
	flag.String("profile-store", "mongo", "profile store backend (mongo, postgres or none)")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "lysco-checkout", "The name of the MongoDB database")
	flag.String("postgres-dsn", "", "The DSN of the PostgreSQL server")
	flag.Bool("profile-link-required", false, "fail the checkout when the profile cannot be linked")
	flag.String("mail-backend", "smtp", "mail backend (smtp, sendgrid or none)")
	flag.String("smtp-server", "", "SMTP server")
	flag.Int("smtp-port", 587, "SMTP port")
	flag.String("smtp-username", "", "SMTP username")
	flag.String("smtp-password", "", "SMTP password")
	flag.String("email-from-address", "", "email address of the sender")
	flag.String("email-from-name", "Lys & Co", "name of the sender")
	flag.String("sendgrid-key", "", "SendGrid API key")
	flag.String("responsible-email", "", "address receiving the order copies and the contact messages")
	flag.Duration("queue-ttl", queue.DefaultTTL, "how long a notification is retried")
	flag.Duration("queue-throttle", queue.DefaultThrottle, "delay between two sent notifications")
	flag.String("invoice-logo", "", "path of the logo printed on the invoices")
	flag.String("s3-bucket", "", "bucket archiving the invoices, archiving is disabled when empty")
	flag.String("s3-region", objectstorage.DefaultRegion, "region of the bucket")
	flag.String("s3-endpoint", "", "endpoint of an S3 compatible service")
	flag.String("s3-access-key", "", "S3 access key")
	flag.String("s3-secret-key", "", "S3 secret key")
	flag.Bool("s3-path-style", false, "use path style addressing")
	flag.String("webapp-url", mailtemplates.SiteURL, "URL of the web app linked from the emails")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("LYSCO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	log.Init(viper.GetString("log-level"), "stdout", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stripe
	stripeConf, err := stripe.NewConfig(viper.GetString("stripe-key"), viper.GetStringSlice("stripe-tiers"))
	if err != nil {
		log.Fatalf("invalid stripe configuration: %v", err)
	}
	stripeConf.Currency = viper.GetString("stripe-currency")
	stripeConf.Locale = viper.GetString("stripe-locale")
	stripeConf.PortalReturnURL = viper.GetString("portal-return-url")
	gateway, err := stripe.NewClient(stripeConf, nil)
	if err != nil {
		log.Fatalf("could not create the stripe client: %v", err)
	}

	// profile store
	store := newProfileStore()
	if store != nil {
		defer store.Close()
	}

	// notifications
	notifier := newNotifier(ctx)

	// checkout
	orchestrator, err := checkout.New(&checkout.Config{
		Gateway:             gateway,
		Stripe:              stripeConf,
		Store:               store,
		Locks:               stripe.NewLockManager(),
		Notifier:            notifier,
		ProfileLinkRequired: viper.GetBool("profile-link-required"),
	})
	if err != nil {
		log.Fatalf("could not create the checkout: %v", err)
	}

	// create the local API server
	server, err := api.New(&api.Config{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		Checkout: orchestrator,
		Gateway:  gateway,
		Notifier: notifier,
		Billing:  billing.NewService(gateway, billing.DefaultTTL),
	})
	if err != nil {
		log.Fatalf("could not create the API: %v", err)
	}
	server.Start()

	// wait until the process is stopped, as the server is running in a goroutine
	log.Infow("server started", "host", viper.GetString("host"), "port", viper.GetInt("port"))
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("could not stop the API server gracefully", "error", err)
	}
	if notifier != nil {
		// the order confirmations being built still reach the queue
		notifier.Wait()
	}
}

// newProfileStore opens the configured profile store. It returns nil when
// profiles are disabled.
func newProfileStore() db.ProfileStore {
	switch backend := viper.GetString("profile-store"); backend {
	case "mongo":
		store, err := db.New(viper.GetString("mongo-url"), viper.GetString("mongo-db"))
		if err != nil {
			log.Fatalf("could not create the MongoDB database: %v", err)
		}
		return store
	case "postgres":
		store, err := postgres.New(viper.GetString("postgres-dsn"), true)
		if err != nil {
			log.Fatalf("could not create the PostgreSQL database: %v", err)
		}
		return store
	case "none", "":
		log.Warnw("no profile store configured, customers will not be linked to profiles")
		return nil
	default:
		log.Fatalf("unknown profile store %q", backend)
	}
	return nil
}

// newNotifier starts the notification queue over the configured mail
// backend. It returns nil when mails are disabled.
func newNotifier(ctx context.Context) *checkout.Notifier {
	var service notifications.NotificationService
	switch backend := viper.GetString("mail-backend"); backend {
	case "smtp":
		mail, err := smtp.New(&smtp.Config{
			FromName:     viper.GetString("email-from-name"),
			FromAddress:  viper.GetString("email-from-address"),
			SMTPServer:   viper.GetString("smtp-server"),
			SMTPPort:     viper.GetInt("smtp-port"),
			SMTPUsername: viper.GetString("smtp-username"),
			SMTPPassword: viper.GetString("smtp-password"),
		})
		if err != nil {
			log.Fatalf("could not create the SMTP service: %v", err)
		}
		service = mail
	case "sendgrid":
		mail, err := sendgrid.New(&sendgrid.Config{
			FromName:    viper.GetString("email-from-name"),
			FromAddress: viper.GetString("email-from-address"),
			APIKey:      viper.GetString("sendgrid-key"),
		})
		if err != nil {
			log.Fatalf("could not create the SendGrid service: %v", err)
		}
		service = mail
	case "none", "":
		log.Warnw("no mail backend configured, notifications are disabled")
		return nil
	default:
		log.Fatalf("unknown mail backend %q", backend)
	}
	if err := mailtemplates.Load(); err != nil {
		log.Fatalf("could not load the mail templates: %v", err)
	}

	q := queue.NewQueue(ctx, viper.GetDuration("queue-ttl"), viper.GetDuration("queue-throttle"), service)
	go q.Start()

	var logo []byte
	if path := viper.GetString("invoice-logo"); path != "" {
		var err error
		if logo, err = os.ReadFile(path); err != nil {
			log.Fatalf("could not read the invoice logo: %v", err)
		}
	}
	conf := &checkout.NotifierConfig{
		Queue:            q,
		Renderer:         invoice.NewRenderer(logo),
		ResponsibleEmail: viper.GetString("responsible-email"),
		Brand: mailtemplates.Brand{
			LogoURL: mailtemplates.LogoURL,
			SiteURL: viper.GetString("webapp-url"),
		},
	}
	if bucket := viper.GetString("s3-bucket"); bucket != "" {
		archive, err := objectstorage.New(ctx, &objectstorage.Config{
			Bucket:       bucket,
			Region:       viper.GetString("s3-region"),
			Endpoint:     viper.GetString("s3-endpoint"),
			AccessKey:    viper.GetString("s3-access-key"),
			SecretKey:    viper.GetString("s3-secret-key"),
			UsePathStyle: viper.GetBool("s3-path-style"),
		})
		if err != nil {
			log.Fatalf("could not create the invoice archive: %v", err)
		}
		conf.Archive = archive
	}
	notifier, err := checkout.NewNotifier(conf)
	if err != nil {
		log.Fatalf("could not create the notifier: %v", err)
	}
	return notifier
}
